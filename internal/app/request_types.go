package app

// PutawayRequest is a bin scan followed by a package scan.
type PutawayRequest struct {
	BinCode    string `json:"bin_code"`
	TrackingID string `json:"tracking_id"`
}

// ScanRequest pairs the scanned tracking ID with the one the operator
// declared (the row they tapped, or the first scan).
type ScanRequest struct {
	TrackingID         string `json:"tracking_id"`
	ExpectedTrackingID string `json:"expected_tracking_id"`
}

// DispatchRequest pairs a scanned bin code with the declared one.
type DispatchRequest struct {
	BinCode         string `json:"bin_code"`
	ExpectedBinCode string `json:"expected_bin_code"`
}

// AssignRequest names shipments and a target operator ID or "AUTO".
type AssignRequest struct {
	TrackingIDs []string `json:"tracking_ids"`
	Target      string   `json:"target"`
	File        *Upload  `json:"-"`
}

// ReconcileRequest carries tracking IDs inline or as an uploaded file.
// When both are present the file wins.
type ReconcileRequest struct {
	TrackingIDs []string `json:"tracking_ids"`
	Mode        string   `json:"mode"`   // manifest (default) or status
	Intent      string   `json:"intent"` // registered or delivered, status mode only
	File        *Upload  `json:"-"`
}

// PicklistRequest carries a picklist inline or as an uploaded file.
type PicklistRequest struct {
	TrackingIDs []string `json:"tracking_ids"`
	File        *Upload  `json:"-"`
}
