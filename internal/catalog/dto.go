package catalog

type StatusesResponse struct {
	Statuses []string `json:"statuses"`
	Terminal []string `json:"terminal"`
}

type MerchantsResponse struct {
	Count     int      `json:"count"`
	Merchants []string `json:"merchants"`
}
