package models

import "time"

// Bucket is a customer's recency class at a reference date.
type Bucket string

const (
	BucketActive   Bucket = "active"
	BucketAtRisk   Bucket = "at_risk"
	BucketInactive Bucket = "inactive"
)

// CustomerStatus is one customer's purchase history summary.
type CustomerStatus struct {
	Key           string    `json:"key"`
	Label         string    `json:"label"`
	FirstPurchase time.Time `json:"first_purchase"`
	LastPurchase  time.Time `json:"last_purchase"`
	DaysSinceLast int       `json:"days_since_last"`
	Value         float64   `json:"value"`
	Transactions  int       `json:"transactions"`
	Bucket        Bucket    `json:"bucket"`
}
