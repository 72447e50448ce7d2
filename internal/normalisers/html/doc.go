// Package html extracts readable text from HTML documents. Headings are
// rewritten as Markdown headings so the chunker can split along them.
package html
