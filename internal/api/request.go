package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kartoza/gem-pricer/internal/features"
	"github.com/kartoza/gem-pricer/internal/predict"
)

// maxBodyBytes caps the size of a prediction request body
const maxBodyBytes = 1 << 20

// RequestIDHeader carries the ID assigned to each prediction request
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request an ID, echoes it in the response and
// stores it in the request context
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(predict.WithRequestID(r.Context(), id)))
	})
}

// SourceFromRequest extracts the prediction payload: the JSON object when
// the body is declared as JSON, else the urlencoded or multipart form
// values. The result may be empty, which the normalizer rejects.
func SourceFromRequest(w http.ResponseWriter, r *http.Request) features.Source {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case isJSON(mt):
		return decodeObject(r.Body)
	case mt == "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil || r.MultipartForm == nil {
			return features.MapSource{}
		}
		return features.FormSource(r.MultipartForm.Value)
	}

	if err := r.ParseForm(); err != nil {
		return features.MapSource{}
	}
	return features.FormSource(r.PostForm)
}

// isJSON accepts application/json and structured +json types such as
// application/vnd.api+json
func isJSON(mediaType string) bool {
	return mediaType == "application/json" ||
		(strings.HasPrefix(mediaType, "application/") && strings.HasSuffix(mediaType, "+json"))
}

// decodeObject reads a JSON object. Anything else, including malformed
// JSON, yields an empty source.
func decodeObject(body io.Reader) features.MapSource {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return features.MapSource{}
	}
	return features.MapSource(obj)
}
