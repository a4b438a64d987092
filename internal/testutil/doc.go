// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing messages, scripting model output and
// capturing published events. They are not intended for production usage.
package testutil
