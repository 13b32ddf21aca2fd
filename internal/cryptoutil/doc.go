// Package cryptoutil holds the verification primitives the content pipeline
// uses: SHA-256 helpers with constant-time comparison, and KMS-backed
// signature verification (ECDSA P-256/P-384, RSA-PSS with an optional
// PKCS1v15 fallback) for signed content bundles.
package cryptoutil
