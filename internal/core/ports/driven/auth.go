package driven

// TokenClaims is the validated content of an API token
type TokenClaims struct {
	Subject   string
	IssuedAt  int64
	ExpiresAt int64
}

// AuthAdapter issues and validates bearer tokens for the HTTP surface
type AuthAdapter interface {
	// GenerateToken creates a signed token for a principal
	GenerateToken(subject string, ttlSeconds int64) (string, error)

	// ParseToken validates a token and extracts its claims
	ParseToken(token string) (*TokenClaims, error)
}
