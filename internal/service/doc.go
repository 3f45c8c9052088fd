// Package service contains the application-specific use cases and business
// logic. It orchestrates interactions between domain objects, repositories
// (defined in internal/store) and the transcription job queue to fulfill
// application features.
//
// Services receive dependencies through constructor injection and translate
// store-level errors into application-level errors that the API layer maps
// to HTTP status codes.
package service
