package query

// Meta is the pagination block returned alongside a page of results.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

func NewMeta(total int64, spec Spec) Meta {
	totalPages := 0
	if spec.PageSize > 0 {
		totalPages = int((total + int64(spec.PageSize) - 1) / int64(spec.PageSize))
	}

	return Meta{
		Total:      total,
		Page:       spec.Page,
		Limit:      spec.PageSize,
		TotalPages: totalPages,
		HasNext:    spec.Page < totalPages,
		HasPrev:    spec.Page > 1,
	}
}
