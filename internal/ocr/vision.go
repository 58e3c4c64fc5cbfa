package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tbourn/go-vehicle-assistant/internal/retry"
)

// MaxPagesSync is the page limit of synchronous file annotation.
const MaxPagesSync = 5

type (
	annotateImages func(context.Context, *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)
	annotateFiles  func(context.Context, *visionpb.BatchAnnotateFilesRequest) (*visionpb.BatchAnnotateFilesResponse, error)
)

// VisionRecognizer reads documents with Google Cloud Vision's dense text
// detection.
type VisionRecognizer struct {
	images annotateImages
	files  annotateFiles
	close  func() error
}

// NewVisionRecognizer connects with GOOGLE_CREDENTIALS (inline JSON),
// GOOGLE_APPLICATION_CREDENTIALS (file) or application default credentials.
func NewVisionRecognizer(ctx context.Context) (*VisionRecognizer, error) {
	const op = "NewVisionRecognizer"

	var opts []option.ClientOption
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, wrap(op, err, "create client")
	}
	return &VisionRecognizer{
		images: func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
			return client.BatchAnnotateImages(ctx, req)
		},
		files: func(ctx context.Context, req *visionpb.BatchAnnotateFilesRequest) (*visionpb.BatchAnnotateFilesResponse, error) {
			return client.BatchAnnotateFiles(ctx, req)
		},
		close: client.Close,
	}, nil
}

// Close releases the gRPC connection.
func (v *VisionRecognizer) Close() error {
	if v.close == nil {
		return nil
	}
	return v.close()
}

var denseText = []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}}

func (v *VisionRecognizer) RecognizeImage(ctx context.Context, img []byte, _ string) (string, error) {
	const op = "RecognizeImage"
	resp, err := v.images(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: img},
			Features: denseText,
		}},
	})
	if err != nil {
		return "", wrap(op, classifyGRPC(err), "")
	}
	if len(resp.GetResponses()) == 0 {
		return "", wrap(op, ErrEmptyDocument, "")
	}
	r := resp.GetResponses()[0]
	if r.GetError() != nil {
		return "", wrap(op, errors.New(r.GetError().GetMessage()), "annotate image")
	}
	return r.GetFullTextAnnotation().GetText(), nil
}

func (v *VisionRecognizer) RecognizeDocument(ctx context.Context, doc []byte, mime string) ([]Page, error) {
	const op = "RecognizeDocument"
	if mime != "application/pdf" {
		return nil, wrap(op, ErrUnsupportedMIME, mime)
	}
	resp, err := v.files(ctx, &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{Content: doc, MimeType: mime},
			Features:    denseText,
		}},
	})
	if err != nil {
		return nil, wrap(op, classifyGRPC(err), "")
	}
	if len(resp.GetResponses()) == 0 {
		return nil, wrap(op, ErrEmptyDocument, "")
	}
	file := resp.GetResponses()[0]
	if file.GetError() != nil {
		return nil, wrap(op, errors.New(file.GetError().GetMessage()), "annotate file")
	}
	if file.GetTotalPages() > MaxPagesSync {
		return nil, wrap(op, ErrTooManyPages, fmt.Sprintf("document has %d pages", file.GetTotalPages()))
	}
	if len(file.GetResponses()) == 0 {
		return nil, wrap(op, ErrEmptyDocument, "")
	}

	pages := make([]Page, 0, len(file.GetResponses()))
	for i, p := range file.GetResponses() {
		if p.GetError() != nil {
			return nil, wrap(op, errors.New(p.GetError().GetMessage()), fmt.Sprintf("page %d", i+1))
		}
		pages = append(pages, Page{Number: i + 1, Markdown: p.GetFullTextAnnotation().GetText()})
	}
	return pages, nil
}

// classifyGRPC maps transient gRPC codes onto retry classifications.
func classifyGRPC(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.ResourceExhausted:
		return retry.RateLimited(err, 0)
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
		return retry.Unavailable(err)
	default:
		return err
	}
}
