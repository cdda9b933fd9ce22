// Package extract turns a tagged generation source (plain text, a PDF or DOCX
// payload, or a URL) into normalized plain text.
//
// Every failure is an *Error carrying one of the extraction kinds from package
// domain, so callers can distinguish unreadable input from unreachable input
// without inspecting messages. Extraction is deterministic: the same bytes (or
// the same URL response) always yield the same text.
package extract
