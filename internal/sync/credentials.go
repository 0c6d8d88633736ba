package sync

import "context"

// StaticCredentials is the simplest Credentials implementation: a fixed
// owner identity and bearer token, as used by the CLI client.
type StaticCredentials struct {
	Owner string
	Token string
}

func (c StaticCredentials) OwnerID() string { return c.Owner }

func (c StaticCredentials) BearerToken(ctx context.Context) (string, error) {
	return c.Token, nil
}
