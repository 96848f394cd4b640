// Package domain provides core domain models and types.
package domain

// Point is a WGS84 coordinate pair.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Zone represents a fixed geographic subdivision used as the unit of risk,
// allocation, and assignment. Feature values are immutable inputs; RiskScore
// and PriorityWeight are derived exactly once per run.
type Zone struct {
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	PlanningArea   string  `json:"planning_area"`
	Centroid       Point   `json:"centroid"`
	RiskScore      float64 `json:"risk_score"`
	PriorityWeight float64 `json:"priority_weight"`
}

// Responder represents an on-call volunteer. Read-only during optimization.
type Responder struct {
	ID           string  `json:"id"`
	Home         Point   `json:"home"`
	Available    bool    `json:"available"`
	ResponseTime float64 `json:"response_time"` // minutes, strictly positive
}

// DeviceInventory holds the fixed pool of indivisible units for a run and,
// after allocation, the per-zone assigned counts.
type DeviceInventory struct {
	TotalUnits int            `json:"total_units"`
	Assigned   map[string]int `json:"assigned,omitempty"` // zone code -> count
	Prior      map[string]int `json:"prior,omitempty"`    // zone code -> count before this run
}

// Assignment relates one responder to one zone. A responder appears in at
// most one assignment; zones may receive several responders.
type Assignment struct {
	ResponderID  string  `json:"responder_id"`
	ZoneCode     string  `json:"zone_code"`
	Distance     float64 `json:"distance_m"`
	ResponseTime float64 `json:"response_time"`
	Weight       float64 `json:"weight"` // objective contribution of the pair
}

// AssignmentResult is the full outcome of the responder-zone optimization,
// including responders that could not be matched to any zone within reach.
type AssignmentResult struct {
	Assignments []Assignment `json:"assignments"`
	Unassigned  []string     `json:"unassigned"` // responder IDs with no feasible pair
	Objective   float64      `json:"objective"`
}
