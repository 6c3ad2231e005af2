package directory

// Response models the top-level structure of the upstream directory response.
type Response struct {
	Code int `json:"code"`
	Data struct {
		Page     int    `json:"page"`
		PageSize int    `json:"pageSize"`
		Total    int    `json:"total"`
		Items    []Item `json:"items"`
	} `json:"data"`
}

// Item is one advisor as listed by the directory.
type Item struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	SiteID   *int64 `json:"site_id"`
	SiteName string `json:"site_name"`
}
