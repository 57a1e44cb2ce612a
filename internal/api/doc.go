// Package api contains the HTTP handlers, request/response models and
// error mapping for the task service. Handlers translate between the HTTP
// surface and the store and auth layers; they hold no business rules of
// their own beyond request shaping and the patch allow-lists.
package api
