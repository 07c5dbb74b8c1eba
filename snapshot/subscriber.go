package snapshot

// Subscriber handles event subscriptions.
type Subscriber struct {
	done                 chan struct{}
	startedHandler       func(SnapshotStarted)
	enumeratedHandler    func(ValidatorsEnumerated)
	validatorHandler     func(ValidatorProcessed)
	snapshotDoneHandler  func(SnapshotDone)
	snapshotErrorHandler func(SnapshotError)
}

// OnSnapshotStarted sets the handler for SnapshotStarted events
func OnSnapshotStarted(fn func(SnapshotStarted)) func(*Subscriber) {
	return func(s *Subscriber) { s.startedHandler = fn }
}

// OnValidatorsEnumerated sets the handler for ValidatorsEnumerated events
func OnValidatorsEnumerated(fn func(ValidatorsEnumerated)) func(*Subscriber) {
	return func(s *Subscriber) { s.enumeratedHandler = fn }
}

// OnValidatorProcessed sets the handler for ValidatorProcessed events
func OnValidatorProcessed(fn func(ValidatorProcessed)) func(*Subscriber) {
	return func(s *Subscriber) { s.validatorHandler = fn }
}

// OnSnapshotDone sets the handler for SnapshotDone events
func OnSnapshotDone(fn func(SnapshotDone)) func(*Subscriber) {
	return func(s *Subscriber) { s.snapshotDoneHandler = fn }
}

// OnSnapshotError sets the handler for SnapshotError events
func OnSnapshotError(fn func(SnapshotError)) func(*Subscriber) {
	return func(s *Subscriber) { s.snapshotErrorHandler = fn }
}

// NewSubscriber creates a Subscriber with the given options and starts the dispatch loop.
// Returns a closer function that waits for all events to be processed.
//
// Example:
//
//	events, done := service.Start(ctx)
//	closer := snapshot.NewSubscriber(events,
//	  snapshot.OnValidatorProcessed(func(e snapshot.ValidatorProcessed) { ... }),
//	)
//	defer closer()  // Ensures all events processed before exit
//
// The subscriber processes events until the events channel closes,
// then the closer function confirms all processing is complete.
func NewSubscriber(events <-chan Event, opts ...func(*Subscriber)) func() {
	s := newSubscriber(opts...)

	go func() {
		defer close(s.done)
		for ev := range events {
			s.dispatch(ev)
		}
	}()

	return func() {
		<-s.done
	}
}

func newSubscriber(opts ...func(*Subscriber)) *Subscriber {
	s := &Subscriber{
		done:                 make(chan struct{}),
		startedHandler:       func(SnapshotStarted) {},      // nop by default
		enumeratedHandler:    func(ValidatorsEnumerated) {}, // nop by default
		validatorHandler:     func(ValidatorProcessed) {},   // nop by default
		snapshotDoneHandler:  func(SnapshotDone) {},         // nop by default
		snapshotErrorHandler: func(SnapshotError) {},        // nop by default
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Subscriber) dispatch(ev Event) {
	switch e := ev.(type) {
	case SnapshotStarted:
		s.startedHandler(e)
	case ValidatorsEnumerated:
		s.enumeratedHandler(e)
	case ValidatorProcessed:
		s.validatorHandler(e)
	case SnapshotDone:
		s.snapshotDoneHandler(e)
	case SnapshotError:
		s.snapshotErrorHandler(e)
	}
}
