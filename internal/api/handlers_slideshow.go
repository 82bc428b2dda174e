// handlers_slideshow.go - Result slideshow navigation handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/slidewizard/backend/internal/session"
	"github.com/slidewizard/backend/internal/slideshow"
)

// SlideshowHandlerImpl implements the SlideshowHandler interface
type SlideshowHandlerImpl struct {
	sessions *session.Manager
}

// NewSlideshowHandler creates a new slideshow handler
func NewSlideshowHandler(sessions *session.Manager) SlideshowHandler {
	return &SlideshowHandlerImpl{sessions: sessions}
}

// currentSlideshow renders the view the navigator is in.
func currentSlideshow(nav *slideshow.Navigator) slideshow.State {
	st := nav.View(slideshow.ViewInline)
	if st.Fullscreen {
		st.View = slideshow.ViewFullscreen
	}
	return st
}

func (h *SlideshowHandlerImpl) navigate(c echo.Context, move func(*slideshow.Navigator) slideshow.State) error {
	ws, err := lookupWorkspace(h.sessions, c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, move(ws.Navigator))
}

// HandleGetSlideshow returns the current slide
func (h *SlideshowHandlerImpl) HandleGetSlideshow(c echo.Context) error {
	return h.navigate(c, currentSlideshow)
}

// HandleSlideshowNext advances one slide
func (h *SlideshowHandlerImpl) HandleSlideshowNext(c echo.Context) error {
	return h.navigate(c, (*slideshow.Navigator).Next)
}

// HandleSlideshowPrevious goes back one slide
func (h *SlideshowHandlerImpl) HandleSlideshowPrevious(c echo.Context) error {
	return h.navigate(c, (*slideshow.Navigator).Previous)
}

// HandleSlideshowFullscreen opens the fullscreen view
func (h *SlideshowHandlerImpl) HandleSlideshowFullscreen(c echo.Context) error {
	return h.navigate(c, (*slideshow.Navigator).OpenFullscreen)
}

// HandleSlideshowExitFullscreen returns to the inline view
func (h *SlideshowHandlerImpl) HandleSlideshowExitFullscreen(c echo.Context) error {
	return h.navigate(c, (*slideshow.Navigator).CloseFullscreen)
}
