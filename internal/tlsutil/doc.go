// Package tlsutil builds the hardened HTTP clients shared by the model
// providers, the search gateway and the speech synthesizers.
package tlsutil
