// Package pagedex provides pagination and result shaping for full-text
// search over Valkey or Redis with the search module.
//
// Queries are built fluently and executed through an Index handle:
//
//	client, _ := pagedex.New(pagedex.WithValkey("localhost:6379", ""))
//	defer client.Close()
//
//	hotels := client.Index("hotels", pagedex.Sortable("hotel_id"))
//	q := pagedex.NewQuery("spa resort").
//	    Where("city", "berlin").
//	    Between("price", 50, 200).
//	    Select("name", "price").
//	    Highlight("description")
//
// # Offset pagination: random access, bounded depth
//
//	pager, _ := hotels.Pages(q, 20)
//	first, _ := pager.First(ctx) // requests the exact total
//	for pager.HasNext() {
//	    pg, _ := pager.Next(ctx)
//	    // ...
//	}
//
// # Keyset pagination: forward-only, stable under writes
//
//	scan, _ := hotels.Scan(q, "hotel_id", false, 100)
//	for scan.HasNext() {
//	    pg, _ := scan.Next(ctx)
//	    // ...
//	}
//	token, _ := scan.Token() // resume later via hotels.ResumeScan
//
// Totals come from Count (exact) or EstimateCount (sampled), and contiguous
// page runs are fetched in parallel via FetchPages.
package pagedex
