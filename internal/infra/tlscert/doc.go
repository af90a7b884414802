// Package tlscert keeps the HTTP server's certificate current.
//
// A Reloader loads a certificate and key pair, serves it through
// tls.Config.GetCertificate and reloads it when fsnotify reports a change
// to either file. Renewal tools can then replace the files without a
// restart.
package tlscert
