package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"docexplorer/internal/ai"
	"docexplorer/internal/model"
)

var ErrReportNotFound = errors.New("report not found")

const pageUnknown = "N/A"

type ReportRepository interface {
	Create(ctx context.Context, report *model.Report) error
	GetByID(ctx context.Context, id string) (*model.Report, error)
	ListByDocument(ctx context.Context, documentID string) ([]model.Report, error)
}

// VisualElement is a figure the caller wants cited in the report.
type VisualElement struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Caption    string      `json:"caption"`
	PageNumber *int        `json:"page_number,omitempty"`
	ImagePath  string      `json:"image_path,omitempty"`
	TableData  interface{} `json:"table_data,omitempty"`
}

type ReportInput struct {
	UserID         uint
	Analyst        string
	DocumentID     string
	Question       string
	Answer         string
	VisualElements []VisualElement
	Metadata       map[string]interface{}
}

type VisualReference struct {
	RefID   string      `json:"ref_id"`
	Type    string      `json:"type"`
	Caption string      `json:"caption"`
	Page    string      `json:"page"`
	Path    string      `json:"path,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ReportSection struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Report struct {
	ID               string                 `json:"id"`
	Title            string                 `json:"title"`
	DocumentID       string                 `json:"document_id"`
	GeneratedAt      time.Time              `json:"generated_at"`
	Content          string                 `json:"content"`
	Sections         []ReportSection        `json:"sections"`
	VisualReferences []VisualReference      `json:"visual_references"`
	PageReferences   map[string][]string    `json:"page_references"`
	Metadata         map[string]interface{} `json:"metadata"`
}

type GeneratedReport struct {
	Status    string  `json:"status"`
	Report    *Report `json:"report"`
	SavedPath string  `json:"saved_path"`
}

type ReportService struct {
	mm        *MultimodalService
	source    DocumentSource
	repo      ReportRepository
	modelName string
	baseURL   string
	now       func() time.Time
}

func NewReportService(mm *MultimodalService, source DocumentSource, repo ReportRepository, modelName, baseURL string) *ReportService {
	return &ReportService{
		mm:        mm,
		source:    source,
		repo:      repo,
		modelName: modelName,
		baseURL:   strings.TrimRight(baseURL, "/"),
		now:       time.Now,
	}
}

// Generate writes a research report for a question and its answer, cites
// the given visual elements and stores the result.
func (s *ReportService) Generate(ctx context.Context, input ReportInput) (*GeneratedReport, error) {
	question := strings.TrimSpace(input.Question)
	answer := strings.TrimSpace(input.Answer)
	if strings.TrimSpace(input.DocumentID) == "" || question == "" || answer == "" {
		return nil, ErrInvalidInput
	}
	doc, err := s.source.Document(ctx, input.DocumentID)
	if err != nil {
		return nil, err
	}

	refs, pages := visualReferences(input.VisualElements)
	captions := make([]string, len(refs))
	for i, r := range refs {
		captions[i] = r.Caption
	}
	sections := []ReportSection{
		{Title: "Research Question", Content: question},
		{Title: "Analysis", Content: answer},
		{Title: "Visual References", Content: strings.Join(captions, "\n")},
	}

	params := s.mm.params(ai.GenerationParams{})
	content, err := s.mm.Generate(ctx, "", reportPrompt(question, answer, refs), params)
	if err != nil {
		return nil, err
	}

	generatedAt := s.now().UTC()
	meta := map[string]interface{}{}
	for k, v := range input.Metadata {
		meta[k] = v
	}
	meta["source_document"] = doc.Title
	meta["analyst"] = input.Analyst
	meta["generated_at"] = generatedAt.Format(time.RFC3339)
	meta["generation_params"] = map[string]interface{}{
		"model":       s.modelName,
		"temperature": params.Temperature,
		"max_tokens":  params.MaxTokens,
	}

	report := &Report{
		ID:               uuid.NewString(),
		Title:            "Research Report: " + doc.Title,
		DocumentID:       doc.ID,
		GeneratedAt:      generatedAt,
		Content:          content,
		Sections:         sections,
		VisualReferences: refs,
		PageReferences:   pages,
		Metadata:         meta,
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal report failed: %w", err)
	}
	row := &model.Report{
		ID:         report.ID,
		DocumentID: report.DocumentID,
		UserID:     input.UserID,
		Question:   question,
		Payload:    string(payload),
		CreatedAt:  generatedAt,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, err
	}
	return &GeneratedReport{
		Status:    "success",
		Report:    report,
		SavedPath: s.baseURL + "/api/v1/reports/" + report.ID,
	}, nil
}

func (s *ReportService) Get(ctx context.Context, id string) (*Report, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrReportNotFound
	}
	var report Report
	if err := json.Unmarshal([]byte(row.Payload), &report); err != nil {
		return nil, fmt.Errorf("decode stored report failed: %w", err)
	}
	return &report, nil
}

func (s *ReportService) ListByDocument(ctx context.Context, documentID string) ([]model.Report, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByDocument(ctx, documentID)
}

// visualReferences captions graphs, tables and images and groups their
// reference ids by page. Elements of other types are ignored.
func visualReferences(elements []VisualElement) ([]VisualReference, map[string][]string) {
	refs := make([]VisualReference, 0, len(elements))
	pages := make(map[string][]string)
	for _, e := range elements {
		var label string
		switch e.Type {
		case "graph":
			label = "Graph"
		case "table":
			label = "Table"
		case "image":
			label = "Image"
		default:
			continue
		}
		page := pageUnknown
		if e.PageNumber != nil {
			page = strconv.Itoa(*e.PageNumber)
		}
		ref := VisualReference{
			RefID:   e.Type + "_" + e.ID,
			Type:    e.Type,
			Caption: fmt.Sprintf("%s %s: %s", label, e.ID, e.Caption),
			Page:    page,
		}
		if e.Type == "table" {
			ref.Data = e.TableData
		} else {
			ref.Path = e.ImagePath
		}
		refs = append(refs, ref)
		if page != pageUnknown {
			pages[page] = append(pages[page], ref.RefID)
		}
	}
	return refs, pages
}

func reportPrompt(question, answer string, refs []VisualReference) string {
	var b strings.Builder
	b.WriteString("Generate a comprehensive research report following this structure:\n\n")
	b.WriteString("1. Research Question:\n")
	b.WriteString(question)
	b.WriteString("\n\n2. Analysis:\n")
	b.WriteString(answer)
	b.WriteString("\n\n3. Visual References:\n")
	for _, r := range refs {
		fmt.Fprintf(&b, "- %s (Page %s)\n", r.Caption, r.Page)
	}
	b.WriteString("\nFormat the report with:\n" +
		"- Clear section headings\n" +
		"- Proper citations to visual elements\n" +
		"- Page references where applicable\n" +
		"- Academic tone and structure\n" +
		"- Logical flow between sections\n")
	return b.String()
}
