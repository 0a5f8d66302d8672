// Package ftp implements the FTP side of the file-distribution core: a
// client driving the control-channel dialogue (RFC 959, with the TLS
// extensions of RFC 2228/4217 and the EPRT/EPSV and MDTM/SIZE/MLST
// extensions of RFC 2428/3659) and the separate data channel used for
// file transfers and directory listings.
//
// A Client is a single protocol session. It is not safe for concurrent
// use by multiple goroutines; it may be handed between goroutines but
// never shared. Every socket operation is bounded by the configured
// transfer timeout.
package ftp
