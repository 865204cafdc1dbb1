// Package presigned provides HMAC-signed, time-limited read URLs for
// attachment backends that have no native presigning (memory and filesystem).
//
// # Basic Usage
//
// Sign a download URL for a blob key:
//
//	signer := presigned.New(presigned.WithSecretKey("your-secret-key"))
//	url, err := signer.SignURLWithBase("https://notes.example.com", http.MethodGet, "/files/notes/u/ab/cd_a.txt", time.Hour)
//	// https://notes.example.com/files/notes/u/ab/cd_a.txt?signature=...&expires=1696789012
//
// Serve signed URLs from a chi router:
//
//	r.Handle("/files/*", presigned.NewHandler(store, signer))
//
// # Signature Format
//
// The signed payload is METHOD|PATH|EXPIRES, where PATH is the unescaped
// request path. The signature is the hex HMAC-SHA256 of the payload.
package presigned
