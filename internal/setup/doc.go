// Package setup resolves the tool's own configuration: where the package
// store, manifests, and composed environments live on disk, and which secrets
// from the surrounding .env file should reach workflow commands.
//
// This package is essentially a collection of scripts and constants, and is
// therefore the only package that is allowed to call a global logger.
package setup
