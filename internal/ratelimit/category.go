// Package ratelimit: request category classification.
//
// Every gated request maps to exactly one category, each with its own
// (request count, window) budget. The set is fixed and lives in code, not in
// configuration: budgets are a property of the API surface, not a deployment.
package ratelimit

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Category is a static rate-limit budget: name, request limit, and window.
type Category struct {
	Name   string
	Limit  int
	Window time.Duration
}

// The fixed category set, ordered here roughly by sensitivity.
var (
	// CategoryScan guards the QR scan endpoints (highest sensitivity).
	CategoryScan = Category{Name: "scan", Limit: 10, Window: time.Minute}
	// CategoryBulk guards batch operations touching many records.
	CategoryBulk = Category{Name: "bulk", Limit: 3, Window: 5 * time.Minute}
	// CategoryExport guards CSV/PDF export generation.
	CategoryExport = Category{Name: "export", Limit: 6, Window: 5 * time.Minute}
	// CategorySearch guards anything carrying a free-text query.
	CategorySearch = Category{Name: "search", Limit: 30, Window: time.Minute}
	// CategoryMutation guards state-changing verbs.
	CategoryMutation = Category{Name: "mutation", Limit: 30, Window: time.Minute}
	// CategoryDashboard is the default read budget.
	CategoryDashboard = Category{Name: "dashboard", Limit: 120, Window: time.Minute}
)

// Exact-path matches checked before any pattern rules.
const (
	scanPassPath    = "/api/v1/passes/scan"
	scanCheckinPath = "/api/v1/checkin/scan"
	bulkActionPath  = "/api/v1/admin/bulk"
)

// Classify maps (method, path, query) to exactly one category.
//
// Precedence is fixed and order matters:
//  1. exact scan paths
//  2. exact bulk-action path
//  3. export shapes: an /export path segment, or any dashboard path
//     requesting format=csv
//  4. free-text search parameter present
//  5. mutating verb (POST/PUT/PATCH)
//  6. default: dashboard
//
// Rule 3 before rule 5 is deliberate: a POST to an export-shaped path must
// classify as export, not mutation.
func Classify(method, path string, query url.Values) Category {
	switch path {
	case scanPassPath, scanCheckinPath:
		return CategoryScan
	case bulkActionPath:
		return CategoryBulk
	}

	if isExport(path, query) {
		return CategoryExport
	}
	if q := strings.TrimSpace(query.Get("search")); q != "" {
		return CategorySearch
	}
	if q := strings.TrimSpace(query.Get("q")); q != "" {
		return CategorySearch
	}

	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return CategoryMutation
	}
	return CategoryDashboard
}

// isExport reports whether the request is shaped like an export: either the
// path carries an /export segment, or a generic dashboard path asks for CSV.
func isExport(path string, query url.Values) bool {
	if strings.Contains(path, "/export") {
		return true
	}
	return strings.EqualFold(query.Get("format"), "csv")
}
