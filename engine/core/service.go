package core

// Service is driven by one goroutine from start to teardown. Only Stop may be
// called from other goroutines.
type Service interface {
	Initialize() error
	Run() error
	Stop()
	Shutdown() error
}

// RunService initializes and runs s, then shuts it down, all on the calling
// goroutine. The hook handed to bind may be called from any goroutine, such
// as a signal handler: it only stops s and returns once the teardown is over.
func RunService(s Service, bind func(hook func())) error {
	stopped := make(chan struct{})
	bind(func() {
		s.Stop()
		<-stopped
	})
	defer close(stopped)

	var err error
	if err = s.Initialize(); err != nil {
		LogError("failed to initialize: %s", err)
	} else if err = s.Run(); err != nil {
		LogError("stopped: %s", err)
	}
	if serr := s.Shutdown(); serr != nil {
		LogError("shutdown: %s", serr)
		if err == nil {
			err = serr
		}
	}
	return err
}
