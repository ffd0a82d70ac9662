// Package domain contains the quote-keeper entities and business rules.
//
// Entities here are typed projections of rows owned by the remote store.
// They carry no knowledge of transports or databases; adapters translate
// into these types and normalize missing values on the way in.
//
// Domain errors represent business-level failures, not HTTP errors, and are
// mapped to transport status codes by the adapters.
package domain
