// Package smtp implements the mail side of the file-distribution core:
// an SMTP client with EHLO capability discovery, STARTTLS, AUTH
// LOGIN/PLAIN, and a DATA body writer that performs dot-stuffing, CRLF
// expansion and optional 7-bit to ISO-8859-1 glyph translation while
// streaming.
//
// One Client is one connection, driving one mail transaction at a time.
package smtp
