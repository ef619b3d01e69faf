package entity

// BindingCall is one invocation of a host-installed binding by the page.
type BindingCall struct {
	Name    string
	Payload string
}
