package acquire

// Input is the source of a pipeline run. The set of variants is closed:
// PlainText, RemoteDocument and UploadedDocument.
type Input interface {
	// Source names the variant for logs and API responses.
	Source() string
	isInput()
}

// PlainText is text typed or pasted by the user.
type PlainText struct {
	Text string
}

// RemoteDocument is an HTML page fetched over HTTP(S).
type RemoteDocument struct {
	URL string
}

// UploadedDocument is a client-supplied text file.
type UploadedDocument struct {
	Name      string
	MediaType string
	Content   []byte
}

func (PlainText) Source() string        { return "text" }
func (RemoteDocument) Source() string   { return "url" }
func (UploadedDocument) Source() string { return "file" }

func (PlainText) isInput()        {}
func (RemoteDocument) isInput()   {}
func (UploadedDocument) isInput() {}
