package recognizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	"cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vozlab/escriba/internal/recognizer"
)

const (
	speechAPIEndpointPort = 443

	// finalFlushTimeout bounds how long a closing session waits for the
	// API to return the trailing results after the audio stops.
	finalFlushTimeout = 5 * time.Second

	// sessionEventBuffer sizes the queue between the receive loop and
	// the session goroutine that drains it between audio chunks.
	sessionEventBuffer = 32
)

// GoogleConfig carries everything the Cloud Speech backend needs. All
// values come from the environment at startup.
type GoogleConfig struct {
	ProjectID       string
	CredentialsJSON string
	Location        string
	Model           string
	Language        string
	SampleRate      int
	Channels        int
}

// GoogleFactory opens one Speech API client for the whole process and
// starts a bidirectional recognition stream per session. Credential
// detection happens at construction so bad credentials fail the boot
// instead of the first connection.
type GoogleFactory struct {
	cfg    GoogleConfig
	client *speech.Client
}

func NewGoogleFactory(ctx context.Context, cfg GoogleConfig) (recognizer.Factory, error) {
	cfg.Location = strings.TrimSpace(cfg.Location)
	if cfg.Location == "" {
		cfg.Location = "global"
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Language = normalizeLanguageCode(cfg.Language)

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(cfg.CredentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if cfg.Location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", cfg.Location, speechAPIEndpointPort)))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	slog.Info("cloud speech client initialized", "location", cfg.Location, "language", cfg.Language, "model", cfg.Model)

	return &GoogleFactory{cfg: cfg, client: client}, nil
}

func (f *GoogleFactory) NewSession(ctx context.Context, sessionID string) (recognizer.Session, error) {
	stream, err := f.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, fmt.Errorf("open recognition stream: %w", err)
	}
	if err := f.sendConfig(stream); err != nil {
		_ = stream.CloseSend()
		return nil, fmt.Errorf("configure recognition stream: %w", err)
	}
	slog.Info("cloud speech stream initialized", "session_id", sessionID, "language", f.cfg.Language)

	return newGoogleSession(stream), nil
}

func (f *GoogleFactory) sendConfig(stream speechpb.Speech_StreamingRecognizeClient) error {
	recognizerName := fmt.Sprintf("projects/%s/locations/%s/recognizers/_", f.cfg.ProjectID, f.cfg.Location)
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		Recognizer: recognizerName,
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Model:         f.cfg.Model,
					LanguageCodes: []string{f.cfg.Language},
					DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
						ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
							Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
							SampleRateHertz:   int32(f.cfg.SampleRate),
							AudioChannelCount: int32(f.cfg.Channels),
						},
					},
					Features: &speechpb.RecognitionFeatures{
						EnableWordTimeOffsets: true,
						EnableWordConfidence:  true,
					},
				},
				StreamingFeatures: &speechpb.StreamingRecognitionFeatures{InterimResults: true},
			},
		},
	})
}

func (f *GoogleFactory) Backend() string { return "google" }

func (f *GoogleFactory) Ready() bool { return f.client != nil }

func (f *GoogleFactory) Close() error {
	if f.client == nil {
		return nil
	}
	err := f.client.Close()
	f.client = nil
	return err
}

type googleEvent struct {
	final bool
	hyp   recognizer.Hypothesis
	text  string
}

// googleSession adapts the bidirectional stream to the pull model the
// engine expects. A receive goroutine queues results; the session
// goroutine drains the queue between audio chunks. Utterance boundaries
// map to finalized results, everything else feeds the partial text.
type googleSession struct {
	stream   speechpb.Speech_StreamingRecognizeClient
	events   chan googleEvent
	closed   chan struct{}
	recvDone chan struct{}

	closeOnce sync.Once

	sendMu     sync.Mutex
	sendClosed bool

	errMu   sync.Mutex
	recvErr error

	// Owned by the session goroutine, no locking needed.
	finals  []recognizer.Hypothesis
	partial string
}

func newGoogleSession(stream speechpb.Speech_StreamingRecognizeClient) *googleSession {
	s := &googleSession{
		stream:   stream,
		events:   make(chan googleEvent, sessionEventBuffer),
		closed:   make(chan struct{}),
		recvDone: make(chan struct{}),
	}
	go s.receive()
	return s
}

func (s *googleSession) AcceptWaveform(pcm []byte) (bool, error) {
	if err := s.recvError(); err != nil {
		return false, fmt.Errorf("cloud speech stream failed: %w", err)
	}

	s.sendMu.Lock()
	err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{Audio: pcm},
	})
	s.sendMu.Unlock()
	if err != nil {
		// gRPC reports a dead stream as io.EOF on Send; the cause only
		// surfaces on Recv, so wait for the receive loop to record it.
		if errors.Is(err, io.EOF) {
			s.awaitRecvDone()
			if rerr := s.recvError(); rerr != nil {
				return false, fmt.Errorf("cloud speech stream failed: %w", rerr)
			}
		}
		return false, fmt.Errorf("send audio to cloud speech: %w", err)
	}

	s.drainEvents()
	return len(s.finals) > 0, nil
}

func (s *googleSession) Result() (recognizer.Hypothesis, error) {
	if err := s.recvError(); err != nil {
		return recognizer.Hypothesis{}, fmt.Errorf("cloud speech stream failed: %w", err)
	}
	s.drainEvents()
	if len(s.finals) == 0 {
		return recognizer.Hypothesis{}, nil
	}
	hyp := s.finals[0]
	s.finals = s.finals[1:]
	return hyp, nil
}

func (s *googleSession) PartialResult() (string, error) {
	if err := s.recvError(); err != nil {
		return "", fmt.Errorf("cloud speech stream failed: %w", err)
	}
	s.drainEvents()
	return s.partial, nil
}

// FinalResult stops the audio stream and gathers whatever the API still
// has in flight, merging queued finals into one closing hypothesis. The
// trailing interim text stands in when no final ever arrived.
func (s *googleSession) FinalResult() (recognizer.Hypothesis, error) {
	s.closeSend()

	deadline := time.After(finalFlushTimeout)
wait:
	for {
		select {
		case ev := <-s.events:
			s.applyEvent(ev)
		case <-s.recvDone:
			break wait
		case <-deadline:
			slog.Warn("cloud speech flush timed out waiting for trailing results")
			break wait
		}
	}
	s.drainEvents()

	var texts []string
	var words []recognizer.Word
	for _, hyp := range s.finals {
		if hyp.Text != "" {
			texts = append(texts, hyp.Text)
		}
		words = append(words, hyp.Words...)
	}
	s.finals = nil
	if len(texts) == 0 && s.partial != "" {
		texts = append(texts, s.partial)
	}
	s.partial = ""

	if err := s.recvError(); err != nil && len(texts) == 0 {
		return recognizer.Hypothesis{}, fmt.Errorf("cloud speech stream failed: %w", err)
	}
	return recognizer.Hypothesis{Text: strings.Join(texts, " "), Words: words}, nil
}

func (s *googleSession) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	s.closeSend()
	return nil
}

func (s *googleSession) closeSend() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendClosed {
		return
	}
	s.sendClosed = true
	_ = s.stream.CloseSend()
}

func (s *googleSession) receive() {
	defer close(s.recvDone)
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if !isStreamShutdown(err) {
				s.setRecvErr(err)
			}
			return
		}
		for _, result := range resp.GetResults() {
			alts := result.GetAlternatives()
			if len(alts) == 0 {
				continue
			}
			ev := googleEvent{text: alts[0].GetTranscript()}
			if result.GetIsFinal() {
				ev = googleEvent{final: true, hyp: hypothesisFromAlternative(alts[0])}
			}
			select {
			case s.events <- ev:
			case <-s.closed:
				return
			}
		}
	}
}

func (s *googleSession) drainEvents() {
	for {
		select {
		case ev := <-s.events:
			s.applyEvent(ev)
		default:
			return
		}
	}
}

func (s *googleSession) applyEvent(ev googleEvent) {
	if ev.final {
		s.finals = append(s.finals, ev.hyp)
		s.partial = ""
	} else {
		s.partial = ev.text
	}
}

// awaitRecvDone blocks until the receive loop exits, consuming queued
// events along the way so the loop can never stay parked on a full
// event buffer.
func (s *googleSession) awaitRecvDone() {
	for {
		select {
		case ev := <-s.events:
			s.applyEvent(ev)
		case <-s.recvDone:
			s.drainEvents()
			return
		}
	}
}

// isStreamShutdown separates an orderly stream ending from a failure
// worth surfacing to the session.
func isStreamShutdown(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return true
	}
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Canceled
}

func (s *googleSession) recvError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.recvErr
}

func (s *googleSession) setRecvErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.recvErr == nil {
		s.recvErr = err
	}
}

// hypothesisFromAlternative keeps the per-word timings and confidences
// when the API returns them. Some models only score the alternative as
// a whole; that score is carried as a single synthetic word so finals
// still report a confidence.
func hypothesisFromAlternative(alt *speechpb.SpeechRecognitionAlternative) recognizer.Hypothesis {
	hyp := recognizer.Hypothesis{Text: strings.TrimSpace(alt.GetTranscript())}
	apiWords := alt.GetWords()
	if len(apiWords) == 0 {
		if hyp.Text != "" && alt.GetConfidence() > 0 {
			hyp.Words = []recognizer.Word{{Text: hyp.Text, Start: 0, End: 1, Conf: float64(alt.GetConfidence())}}
		}
		return hyp
	}
	hyp.Words = make([]recognizer.Word, 0, len(apiWords))
	for _, w := range apiWords {
		hyp.Words = append(hyp.Words, recognizer.Word{
			Text:  w.GetWord(),
			Start: w.GetStartOffset().AsDuration().Seconds(),
			End:   w.GetEndOffset().AsDuration().Seconds(),
			Conf:  float64(w.GetConfidence()),
		})
	}
	return hyp
}

// normalizeLanguageCode maps lowercase codes like "pt-br" onto the
// BCP-47 form the Speech API expects ("pt-BR").
func normalizeLanguageCode(lang string) string {
	parts := strings.Split(strings.TrimSpace(lang), "-")
	if len(parts) != 2 {
		return strings.TrimSpace(lang)
	}
	return strings.ToLower(parts[0]) + "-" + strings.ToUpper(parts[1])
}
