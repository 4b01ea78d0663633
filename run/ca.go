package run

// Bundled CA roots for TLS connections to brokers and databases from
// containers without a system certificate store.
import _ "golang.org/x/crypto/x509roots/fallback"
