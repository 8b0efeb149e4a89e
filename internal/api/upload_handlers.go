package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/abdshekho/msa-sub001/internal/media"
)

const uploadFailedMessage = "Image upload failed"

// UploadResponse is returned by POST /uploads.
type UploadResponse struct {
	ImageURL string `json:"imageUrl"`
}

// UploadImage handles POST /uploads: a multipart form with an "image" file
// and a "type". Only admins may upload catalog images.
func (h *HTTPHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		log.Printf("WARN: UploadImage rejected form from user %s: %v", claims.UserID(), err)
		respondWithError(w, http.StatusBadRequest, uploadFailedMessage)
		return
	}
	defer r.MultipartForm.RemoveAll()

	kind, err := media.ParseKind(r.FormValue("type"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, uploadFailedMessage)
		return
	}
	if kind != media.KindProfile && !claims.IsAdmin() {
		respondWithError(w, http.StatusForbidden, "Only administrators can upload "+string(kind)+" images")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, uploadFailedMessage)
		return
	}
	defer file.Close()

	url, err := h.media.Save(kind, file)
	if err != nil {
		if errors.Is(err, media.ErrInvalidImage) || errors.Is(err, media.ErrUnknownKind) {
			log.Printf("WARN: UploadImage rejected payload from user %s: %v", claims.UserID(), err)
			respondWithError(w, http.StatusBadRequest, uploadFailedMessage)
			return
		}
		log.Printf("ERROR: UploadImage failed to store image: %v", err)
		respondWithError(w, http.StatusInternalServerError, uploadFailedMessage)
		return
	}

	log.Printf("INFO: stored %s image %s for user %s", kind, url, claims.UserID())
	respondWithJSON(w, http.StatusCreated, UploadResponse{ImageURL: url})
}
