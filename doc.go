// Package main provides the entry point for the SlideTrans backend service.
// It initializes and runs a web server using the Fiber framework that serves
// the REST API behind the presentation translation platform: account
// registration with an approval workflow, role based access control, the
// translation glossary and stop word lists, file uploads, ingredient
// reference data and the log administration panel. The application uses gorm
// for data persistence.
package main
