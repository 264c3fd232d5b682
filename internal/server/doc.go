// Package server hosts the Fiber HTTP service: the middleware chain that
// stamps request ids, the routes binding aggregate endpoints to the readpath
// handler, and the shared HTTP client used against the document store. The
// package accepts its collaborators (logger, handler, cache) explicitly so
// tests can wire fakes; keep exports narrow.
package server
