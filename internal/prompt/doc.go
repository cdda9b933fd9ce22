// Package prompt renders the instruction sent to the language model for a
// deck generation request.
//
// The prompt is built from an embedded text/template and contains, in order:
// the task preamble, the requested card count, the cloze style block, the
// card quality rules, the optional user instruction and must-include terms,
// an output schema example, the delimited source text and a closing demand
// for a bare JSON array. Build performs no I/O.
package prompt
