package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/researcher/internal/agent"
	"github.com/mohammad-safakhou/researcher/internal/knowledge"
	"github.com/mohammad-safakhou/researcher/internal/store"
)

// AgentsHandler serves the /agents routes.
type AgentsHandler struct {
	Service *agent.Service
}

func (h *AgentsHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("/:agent_id", h.get)
	g.DELETE("/:agent_id", h.delete)
	g.PUT("/:agent_id/files", h.addFiles)
	g.PUT("/:agent_id/websites", h.addWebsites)
	g.GET("/:agent_id/knowledge/search", h.search)
	g.POST("/:agent_id/queries", h.query)
}

type createAgentRequest struct {
	Name *string `json:"name"`
}

type createAgentResponse struct {
	AgentID string `json:"agent_id"`
}

// AgentView is the wire shape of an agent. A missing agent renders with a null id.
type AgentView struct {
	ID       *string            `json:"_id"`
	Name     string             `json:"name"`
	Files    []knowledge.Record `json:"files"`
	Websites []knowledge.Record `json:"websites"`
	Messages []string           `json:"messages"`
	Tokens   int                `json:"tokens"`
}

func newAgentView(a store.Agent) AgentView {
	v := AgentView{
		Name:     a.Name,
		Files:    a.Files,
		Websites: a.Websites,
		Messages: a.Messages,
		Tokens:   a.TotalTokens(),
	}
	if a.ID != "" {
		id := a.ID
		v.ID = &id
	}
	if v.Files == nil {
		v.Files = []knowledge.Record{}
	}
	if v.Websites == nil {
		v.Websites = []knowledge.Record{}
	}
	if v.Messages == nil {
		v.Messages = []string{}
	}
	return v
}

type websitesRequest struct {
	URLs []string `json:"urls"`
}

type queryRequest struct {
	Message *string `json:"message"`
}

type searchResponse struct {
	Hits []knowledge.Hit `json:"hits"`
}

// create accepts the agent as a JSON document in the agent_post form field,
// or as a plain JSON body.
func (h *AgentsHandler) create(c echo.Context) error {
	raw, err := agentPayload(c)
	if err != nil {
		return err
	}
	var req createAgentRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return invalid("Invalid JSON in agent_post")
	}
	if req.Name == nil {
		return invalid("Invalid agent data: name: Field required")
	}
	a, err := h.Service.CreateAgent(c.Request().Context(), *req.Name)
	if errors.Is(err, agent.ErrNameRequired) {
		return invalid("Invalid agent data: %v", err)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createAgentResponse{AgentID: a.ID})
}

func agentPayload(c echo.Context) ([]byte, error) {
	req := c.Request()
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		return body, nil
	}
	v := c.FormValue("agent_post")
	if v == "" {
		return nil, invalid("Field required: agent_post")
	}
	return []byte(v), nil
}

func (h *AgentsHandler) get(c echo.Context) error {
	a, err := h.Service.GetAgent(c.Request().Context(), c.Param("agent_id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusOK, newAgentView(store.Agent{}))
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAgentView(a))
}

func (h *AgentsHandler) delete(c echo.Context) error {
	if err := h.Service.DeleteAgent(c.Request().Context(), c.Param("agent_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AgentsHandler) addFiles(c echo.Context) error {
	id := c.Param("agent_id")
	if err := store.ValidateID(id); err != nil {
		return err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return invalid("Field required: files")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return invalid("Field required: files")
	}
	uploads := make([]knowledge.FileUpload, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, fileUpload(fh))
	}
	_, err = h.Service.AddFiles(c.Request().Context(), id, uploads)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func fileUpload(fh *multipart.FileHeader) knowledge.FileUpload {
	return knowledge.FileUpload{
		Name: fh.Filename,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func (h *AgentsHandler) addWebsites(c echo.Context) error {
	id := c.Param("agent_id")
	if err := store.ValidateID(id); err != nil {
		return err
	}
	var req websitesRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return invalid("Invalid JSON format")
	}
	_, err := h.Service.AddWebsites(c.Request().Context(), id, req.URLs)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AgentsHandler) search(c echo.Context) error {
	id := c.Param("agent_id")
	if err := store.ValidateID(id); err != nil {
		return err
	}
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return invalid("Field required: q")
	}
	k := 5
	if raw := c.QueryParam("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return invalid("k must be a positive integer")
		}
		k = n
	}
	hits, err := h.Service.Search(c.Request().Context(), id, q, k)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusOK, searchResponse{Hits: []knowledge.Hit{}})
	}
	if err != nil {
		return err
	}
	if hits == nil {
		hits = []knowledge.Hit{}
	}
	return c.JSON(http.StatusOK, searchResponse{Hits: hits})
}

func (h *AgentsHandler) query(c echo.Context) error {
	id := c.Param("agent_id")
	if err := store.ValidateID(id); err != nil {
		return err
	}
	var req queryRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return invalid("Invalid JSON format")
	}
	if req.Message == nil {
		return invalid("Field required: message")
	}
	turn, err := h.Service.Query(c.Request().Context(), id, *req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, turn)
}
