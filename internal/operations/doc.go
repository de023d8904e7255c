// Package operations runs workbook extractions as tracked jobs.
//
// A Runner admits one extraction at a time per process; every run gets a
// fresh pipeline RunState, so concurrent submissions queue instead of
// sharing figures. Jobs and their results live in a JobStore that hands
// out copies.
package operations
