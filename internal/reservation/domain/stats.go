package domain

// SKUStats is one row of the aggregate report: physical stock minus active
// holds, active holds, and confirmed units.
type SKUStats struct {
	SKU       string
	Available int
	Reserved  int
	Sold      int
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Insight is the advisory service's per-SKU output.
type Insight struct {
	SKU            string
	Recommendation string
	RiskLevel      RiskLevel
}
