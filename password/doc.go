// Package password verifies stored credentials and produces new bcrypt hashes.
//
// # Stored formats
//
// Verify recognises, in order:
//
//	$argon2id$v=19$m=<kb>,t=<n>,p=<n>$<salt>$<hash>   legacy, always rehashed
//	$2a$/$2b$/$2y$ bcrypt of the password              rehashed when cost differs
//	$2a$/$2b$/$2y$ bcrypt of password+pepper           legacy, always rehashed
//	anything else                                      legacy plaintext, always rehashed
//
// Hash always writes plain bcrypt at the configured cost, so one successful
// login moves an account off any legacy format.
//
// # What this package must NOT do
//
//   - Store or retrieve credentials. Callers pass the stored value in.
//   - Log plaintext passwords, peppers, or hashes.
package password
