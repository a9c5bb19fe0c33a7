package credentials

// Credentials bundles the signer and the deferred-login registry behind
// the operations spec.md's §4.3 names: secureId, generateJwt, verifyJwt,
// getUser, confirmUser. The deferred-login flow splits into separate
// register/await steps so the HTTP layer can register at one request
// (POST /api/login/url) and await at another (POST /api/login/confirm).
type Credentials struct {
	Signer   *Signer
	Deferred *DeferredRegistry
}

func New() *Credentials {
	return &Credentials{
		Signer:   NewSigner(),
		Deferred: NewDeferredRegistry(),
	}
}
