package voiceexpense

// Options is the root command grouping sub-commands. The struct tags are
// interpreted by github.com/jessevdk/go-flags.
type Options struct {
	Config     string         `short:"f" long:"config" description:"config YAML path"`
	Serve      *ServeCmd      `command:"serve" description:"Start the voice expense gateway"`
	Say        *SayCmd        `command:"say" description:"Submit an utterance through the floating mic"`
	Transcribe *TranscribeCmd `command:"transcribe" description:"Transcribe an audio clip with Whisper and submit it"`
	Quota      *QuotaCmd      `command:"quota" description:"Show the current voice quota"`
}

// Init instantiates the sub-command referenced by the first argument so that
// flags.Parse can populate its fields.
func (o *Options) Init(firstArg string) {
	switch firstArg {
	case "serve":
		o.Serve = &ServeCmd{}
	case "say":
		o.Say = &SayCmd{}
	case "transcribe":
		o.Transcribe = &TranscribeCmd{}
	case "quota":
		o.Quota = &QuotaCmd{}
	}
}
