// Package errors provides structured, actionable error messages for the
// teddy command line.
//
// Each error has a code (e.g., "T120") that maps to a category, a short
// message and a detailed explanation. Errors raised by the library are
// translated with FromError, so path syntax errors point at the offending
// character:
//
//	ERROR T120: Invalid path
//
//	    products[name=honey
//	                       ^
//
//	  The path could not be parsed: unclosed bracket.
//
//	  Hint: Close every "[" with "]".
package errors
