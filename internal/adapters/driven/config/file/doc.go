// Package file provides the file-based implementation of the ConfigStore
// driven port. Settings live in a TOML file under the longdoc config
// directory, exposed through dot-notation keys with environment variable
// overrides for credentials and endpoints.
package file
