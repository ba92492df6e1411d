// Package export dumps loaded titles and restores them.
//
// # Formats
//
// TSV writes the five title_basics columns in record order with `\N` for
// absent values. The output can be fed back through the loader unchanged.
//
// JSON writes a Document: export metadata plus the titles, with absent
// integers as null. The importer accepts the same Document.
//
// # HTTP API
//
// Export endpoint: GET /v1/export
// Query parameters:
//   - format: "tsv" or "json" (default: tsv)
//   - q: substring filter (optional)
//   - limit: maximum titles (default: 10000)
//   - header: TSV column header (default: true)
//
// Example:
//
//	curl "http://localhost:8080/v1/export?format=tsv&q=1990" -o titles.tsv
//
// Import endpoint: POST /v1/import
// Content-Type: application/json
//
//	curl -X POST "http://localhost:8080/v1/import" \
//	  -H "Content-Type: application/json" \
//	  -d @titles.json
package export
