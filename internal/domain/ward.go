package domain

// Ward hospital ward reference data (read-only for the census pipeline).
type Ward struct {
	WardID   string `db:"ward_id" json:"ward_id"`
	WardName string `db:"ward_name" json:"ward_name"`
	Active   bool   `db:"active" json:"active"`
}
