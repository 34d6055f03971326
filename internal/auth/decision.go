package auth

// The authenticator's branches are a lookup over the facts gathered for a
// request. Zero values in a rule match anything.

type credential uint8

const (
	credentialMissing credential = iota + 1
	credentialEmpty
	credentialPresent
)

type environment uint8

const (
	envProduction environment = iota + 1
	envDegradable
)

type keyState uint8

const (
	keyAbsent keyState = iota + 1
	keyPresent
)

type check uint8

const (
	checkSkipped check = iota + 1
	checkPassed
	checkFailed
)

type decisionInput struct {
	credential credential
	env        environment
	key        keyState
	verify     check
	decode     check
}

type rule struct {
	credential credential
	env        environment
	key        keyState
	verify     check
	decode     check

	mode Mode
	err  error
}

var decisionTable = []rule{
	{credential: credentialMissing, env: envDegradable, mode: ModeAnonymous},
	{credential: credentialMissing, env: envProduction, err: ErrUnauthorized},
	{credential: credentialEmpty, err: ErrUnauthorized},

	{credential: credentialPresent, key: keyPresent, verify: checkPassed, mode: ModeVerified},

	{credential: credentialPresent, env: envProduction, key: keyAbsent, err: ErrServerConfiguration},
	{credential: credentialPresent, env: envDegradable, key: keyAbsent, decode: checkPassed, mode: ModeUnverifiedFallback},
	{credential: credentialPresent, env: envDegradable, key: keyAbsent, decode: checkFailed, err: ErrServerConfiguration},

	{credential: credentialPresent, env: envProduction, key: keyPresent, verify: checkFailed, err: ErrInvalidToken},
	{credential: credentialPresent, env: envDegradable, key: keyPresent, verify: checkFailed, decode: checkPassed, mode: ModeUnverifiedFallback},
	{credential: credentialPresent, env: envDegradable, key: keyPresent, verify: checkFailed, decode: checkFailed, err: ErrInvalidToken},
}

func (r rule) matches(in decisionInput) bool {
	return (r.credential == 0 || r.credential == in.credential) &&
		(r.env == 0 || r.env == in.env) &&
		(r.key == 0 || r.key == in.key) &&
		(r.verify == 0 || r.verify == in.verify) &&
		(r.decode == 0 || r.decode == in.decode)
}

// decide returns the first matching rule's outcome. Inputs that no rule
// covers are rejected as invalid tokens.
func decide(in decisionInput) (Mode, error) {
	for _, r := range decisionTable {
		if r.matches(in) {
			return r.mode, r.err
		}
	}
	return "", ErrInvalidToken
}

func checkOf(err error) check {
	if err != nil {
		return checkFailed
	}
	return checkPassed
}
