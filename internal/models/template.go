package models

// Template is an output document template from the templates service.
type Template struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}
