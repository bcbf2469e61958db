package testutil

// Env is a fixed environment.
type Env map[string]string

// LookupEnv reports the value of name.
func (e Env) LookupEnv(name string) (string, bool) {
	v, ok := e[name]
	return v, ok
}
