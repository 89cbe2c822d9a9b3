package picker

// SetAfterFetch installs the deferred-append hook.
func SetAfterFetch(p *Presenter, fn func(applied bool)) {
	p.afterFetch = fn
}
