package model

type Clinic struct {
	Base
	Name string `db:"name" json:"name"`
}
