// Package normalisers turns raw bytes fetched by a document source into
// text documents. Each sub-package handles one family of formats; Registry
// picks the best match for every raw document.
package normalisers
