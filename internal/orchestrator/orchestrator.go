// Package orchestrator is the Scoring Orchestrator: it wires the
// normalizer, snapshot store, candidate retriever, feature engine,
// duplicate scorer, anomaly scorer, rule engine, decision engine, case
// manager, and audit log into the single /scoreInvoice pipeline.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/mmdatafocus/invoice-sieve/internal/anomaly"
	"github.com/mmdatafocus/invoice-sieve/internal/apperr"
	"github.com/mmdatafocus/invoice-sieve/internal/audit"
	"github.com/mmdatafocus/invoice-sieve/internal/casemgr"
	"github.com/mmdatafocus/invoice-sieve/internal/configstore"
	"github.com/mmdatafocus/invoice-sieve/internal/decisionengine"
	"github.com/mmdatafocus/invoice-sieve/internal/dupscore"
	"github.com/mmdatafocus/invoice-sieve/internal/features"
	"github.com/mmdatafocus/invoice-sieve/internal/idgen"
	"github.com/mmdatafocus/invoice-sieve/internal/normalize"
	"github.com/mmdatafocus/invoice-sieve/internal/retrieval"
	"github.com/mmdatafocus/invoice-sieve/internal/rules"
	"github.com/mmdatafocus/invoice-sieve/internal/scoring"
	"github.com/mmdatafocus/invoice-sieve/internal/store"
	"github.com/mmdatafocus/invoice-sieve/internal/textindex"
	"github.com/mmdatafocus/invoice-sieve/models"
)

var tracer = otel.Tracer("invoice-sieve")

// LineItemInput is the orchestrator's line-item shape, decoupled from
// the REST layer's binding tags so this package never imports api.
type LineItemInput struct {
	Desc       string
	Qty        float64
	UnitPrice  float64
	Amount     float64
	SKU        *string
	GLCode     *string
	CostCenter *string
}

// Request is one /scoreInvoice submission.
type Request struct {
	TenantID       string
	Actor          string
	IdempotencyKey string

	InvoiceID     string
	VendorID      string
	VendorName    string
	InvoiceNumber string
	InvoiceDate   time.Time
	Currency      string
	Total         float64
	TaxTotal      *float64
	PONumber      *string
	RemitAccount  *string
	RemitName     *string
	PDFHash       *string
	Terms         *string
	LineItems     []LineItemInput

	// RawPayload is the original request body, retained for the
	// snapshot's raw_payload column and hashed for payload_hash.
	RawPayload []byte
}

// TopMatch is one ranked candidate returned alongside a decision.
type TopMatch struct {
	InvoiceID  string             `json:"invoice_id"`
	Similarity float64            `json:"similarity"`
	Features   map[string]float64 `json:"features"`
}

// Explanation is one named feature value from the top match.
type Explanation struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// Result is the orchestrator's terminal output for one request.
type Result struct {
	RiskScore    float64
	Decision     models.DecisionLabel
	ReasonCodes  []string
	TopMatches   []TopMatch
	Explanations []Explanation
	DecisionID   string
}

// Orchestrator holds the long-lived collaborators the scoring pipeline
// wires together. One instance is shared across requests; nothing on
// it is mutated per-request.
type Orchestrator struct {
	db             *gorm.DB
	indexer        textindex.Indexer
	predictor      dupscore.Predictor
	anomalyScorer  *anomaly.Scorer
	configs        *configstore.Store
	decisions      *decisionengine.Engine
	cases          *casemgr.Manager
	logger         *logrus.Logger
	locker         *redislock.Client
	rulesetVersion string
}

// New builds an Orchestrator from its collaborators. locker may be nil
// (redis disabled or not yet connected), in which case the
// idempotency-key guard is skipped and only the MySQL advisory lock
// serializes concurrent submissions.
func New(db *gorm.DB, configs *configstore.Store, indexer textindex.Indexer, predictor dupscore.Predictor, logger *logrus.Logger, locker *redislock.Client) *Orchestrator {
	return &Orchestrator{
		db:             db,
		indexer:        indexer,
		predictor:      predictor,
		anomalyScorer:  anomaly.NewScorer(db, configs),
		configs:        configs,
		decisions:      decisionengine.NewEngine(configs),
		cases:          casemgr.NewManager(),
		logger:         logger,
		locker:         locker,
		rulesetVersion: "r1",
	}
}

const (
	topK                = 3
	lineSumTolerancePct = 0.01
	maxFutureSkew       = 48 * time.Hour
	maxInvoiceAgeYears  = 10
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// dataQualityFailed reports whether the submission fails one of the
// sieve's sanity checks: a line-total that does not reconcile with the
// header total within 1%, an implausible invoice date, or a malformed
// currency code. None of these abort scoring — the pipeline still
// runs, but DATA_QUALITY_CHECK_FAIL is appended to the reason codes
// and a PASS is biased up to REVIEW.
func dataQualityFailed(req Request) bool {
	lineSum := 0.0
	for _, l := range req.LineItems {
		lineSum += lineAmount(l)
	}
	base := math.Max(math.Abs(req.Total), 1.0)
	if math.Abs(lineSum-req.Total)/base > lineSumTolerancePct {
		return true
	}
	now := time.Now().UTC()
	if req.InvoiceDate.After(now.Add(maxFutureSkew)) || req.InvoiceDate.Before(now.AddDate(-maxInvoiceAgeYears, 0, 0)) {
		return true
	}
	return !currencyPattern.MatchString(req.Currency)
}

func lineAmount(l LineItemInput) float64 {
	if l.Amount != 0 {
		return l.Amount
	}
	return l.Qty * l.UnitPrice
}

func decimalFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// normalized holds the pure, deterministic derivations computed once
// per request ahead of any database access.
type normalized struct {
	invoiceNumberNorm  string
	remitAccountMasked *string
	remitAccountHash   *string
	textBlob           string
	lines              []models.InvoiceLine
	payloadHash        string
}

func normalizeRequest(req Request) (normalized, error) {
	lineTexts := make([]normalize.LineItemText, len(req.LineItems))
	lines := make([]models.InvoiceLine, len(req.LineItems))
	for i, li := range req.LineItems {
		sku := ""
		if li.SKU != nil {
			sku = *li.SKU
		}
		lineTexts[i] = normalize.LineItemText{SKU: sku, Desc: li.Desc}
		lines[i] = models.InvoiceLine{
			TenantID:        req.TenantID,
			InvoiceID:       req.InvoiceID,
			LineNo:          i + 1,
			Description:     li.Desc,
			DescriptionNorm: normalize.DescNorm(li.Desc),
			Quantity:        decimal.NewFromFloat(li.Qty),
			UnitPrice:       decimal.NewFromFloat(li.UnitPrice),
			Amount:          decimal.NewFromFloat(lineAmount(li)),
			SKU:             li.SKU,
			GLCode:          li.GLCode,
			CostCenter:      li.CostCenter,
		}
	}

	po := ""
	if req.PONumber != nil {
		po = *req.PONumber
	}
	terms := ""
	if req.Terms != nil {
		terms = *req.Terms
	}
	textBlob := normalize.TextBlob(req.VendorName, po, terms, lineTexts)

	canonical, err := normalize.Canonicalize(req.RawPayload)
	if err != nil {
		return normalized{}, err
	}

	return normalized{
		invoiceNumberNorm:  normalize.InvoiceNumberNorm(req.InvoiceNumber),
		remitAccountMasked: normalize.MaskAccountLast4(req.RemitAccount),
		remitAccountHash:   normalize.HashAccount(req.RemitAccount),
		textBlob:           textBlob,
		lines:              lines,
		payloadHash:        normalize.PayloadHash(canonical),
	}, nil
}

// Score runs the full pipeline for one invoice submission: persist the
// snapshot, retrieve candidates, score duplicate/anomaly risk, apply
// rules, fuse into a risk score, decide, open/refresh a case, and
// audit the outcome. A resubmission under the same idempotency key
// short-circuits to the prior decision instead of re-scoring; a fresh
// logical submission of the same invoice content always produces a
// new decision row.
func (o *Orchestrator) Score(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.Score")
	defer span.End()

	norm, err := normalizeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrSchema, err)
	}
	dqFail := dataQualityFailed(req)

	// A client-supplied idempotency key can arrive twice at once (a
	// retry racing the original). The redis lock rejects the second
	// arrival fast, before it ever opens a transaction; a key this
	// process minted itself is always unique, so there's nothing to
	// guard there.
	if req.IdempotencyKey != "" {
		lock, err := scoring.AcquireIdempotencyLock(ctx, o.locker, req.TenantID, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
		}
		defer scoring.ReleaseIdempotencyLock(ctx, lock)
	}

	var result *Result
	txErr := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := scoring.AcquireInvoiceLock(tx, req.TenantID, req.InvoiceID); err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
		}
		defer scoring.ReleaseInvoiceLock(tx, req.TenantID, req.InvoiceID)

		idemKey := req.IdempotencyKey
		if idemKey == "" {
			idemKey = uuid.NewString()
		}
		skip, existingDecisionID, err := scoring.BeginIdempotency(tx, req.TenantID, idemKey)
		if err != nil {
			return err
		}
		if skip {
			res, err := o.loadPersistedResult(ctx, tx, req.TenantID, existingDecisionID)
			if err != nil {
				return err
			}
			result = res
			return nil
		}

		res, err := o.runPipeline(ctx, tx, req, norm, dqFail)
		if err != nil {
			_ = scoring.MarkIdempotencyFailed(tx, req.TenantID, idemKey, err)
			return err
		}
		if err := scoring.MarkIdempotencySucceeded(tx, req.TenantID, idemKey, res.DecisionID); err != nil {
			return err
		}
		result = res
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	// Best-effort: the text indexer backs the near-text retrieval
	// fallback for future submissions, never this one's own decision.
	if err := o.indexer.IndexText(ctx, req.TenantID, req.VendorID, req.InvoiceID, norm.textBlob); err != nil {
		o.logger.WithFields(logrus.Fields{
			"tenant_id":  req.TenantID,
			"invoice_id": req.InvoiceID,
		}).WithError(err).Warn("text index write failed, continuing degraded")
	}

	return result, nil
}

// runPipeline performs every read/write step that must happen inside
// the (tenant, invoice) lock: snapshot write, candidate retrieval and
// scoring, rule evaluation, fusion, decisioning, case refresh, and the
// audit entry.
func (o *Orchestrator) runPipeline(ctx context.Context, tx *gorm.DB, req Request, norm normalized, dqFail bool) (*Result, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.runPipeline")
	defer span.End()

	var taxTotal *decimal.Decimal
	if req.TaxTotal != nil {
		d := decimal.NewFromFloat(*req.TaxTotal)
		taxTotal = &d
	}

	snapshot := &models.InvoiceSnapshot{
		TenantID:           req.TenantID,
		InvoiceID:          req.InvoiceID,
		VendorID:           req.VendorID,
		VendorName:         req.VendorName,
		InvoiceNumber:      req.InvoiceNumber,
		InvoiceNumberNorm:  norm.invoiceNumberNorm,
		InvoiceDate:        req.InvoiceDate,
		Currency:           req.Currency,
		Total:              decimal.NewFromFloat(req.Total),
		TaxTotal:           taxTotal,
		PONumber:           req.PONumber,
		RemitAccountHash:   norm.remitAccountHash,
		RemitAccountMasked: norm.remitAccountMasked,
		RemitName:          req.RemitName,
		PDFHash:            req.PDFHash,
		Terms:              req.Terms,
		PayloadHash:        norm.payloadHash,
		RawPayload:         models.JSONBlob(req.RawPayload),
		NormalizerVersion:  normalize.Version,
	}
	if _, err := store.UpsertInvoice(ctx, tx, snapshot, norm.lines); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}

	// The anomaly scorer's own remit lookup must run before this
	// submission's sighting is recorded, or "was this hash ever seen
	// before" would always answer yes against the row we are about to
	// write.
	anomProb, anomReasons, err := o.anomalyScorer.Score(ctx, req.TenantID, req.VendorID, req.InvoiceID, req.Total, norm.remitAccountHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	bankChange := containsReason(anomReasons, "BANK_CHANGE")

	if norm.remitAccountHash != nil {
		if err := store.UpsertRemitSighting(ctx, tx, req.TenantID, req.VendorID, *norm.remitAccountHash, req.RemitName); err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
		}
	}

	candidateCap, err := o.configs.GetInt(ctx, req.TenantID, req.VendorID, "candidate_cap", configstore.DefaultCandidateCap)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	retriever := retrieval.NewRetriever(tx, o.indexer).WithCap(candidateCap)
	candidates, err := retriever.Retrieve(ctx, retrieval.Query{
		TenantID:          req.TenantID,
		VendorID:          req.VendorID,
		InvoiceID:         req.InvoiceID,
		InvoiceNumberNorm: norm.invoiceNumberNorm,
		PONumber:          req.PONumber,
		Total:             req.Total,
		InvoiceDate:       req.InvoiceDate,
		RemitAccountHash:  norm.remitAccountHash,
		TextBlob:          norm.textBlob,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}

	matches, err := o.scoreCandidates(ctx, tx, req, norm, candidates)
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].similarity != matches[j].similarity {
			return matches[i].similarity > matches[j].similarity
		}
		return matches[i].invoiceID < matches[j].invoiceID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}

	dupProb, textDupProb := 0.0, 0.0
	ruleResult := rules.Result{Forced: models.DecisionPass}
	if len(matches) > 0 {
		dupProb = matches[0].similarity
		for _, m := range matches {
			if m.vector["text_cosine"] > textDupProb {
				textDupProb = m.vector["text_cosine"]
			}
		}

		poTotalTol, err := o.configs.GetFloat(ctx, req.TenantID, req.VendorID, "same_po_total_tol", configstore.DefaultSamePOTotalTol)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
		}
		poWindowDays, err := o.configs.GetInt(ctx, req.TenantID, req.VendorID, "same_po_window_days", configstore.DefaultSamePOWindowDays)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
		}

		top := matches[0]
		ruleResult = rules.EvaluateCandidates(rules.Query{
			InvoiceNumberNorm: norm.invoiceNumberNorm,
			PONumber:          req.PONumber,
			Total:             req.Total,
			InvoiceDate:       req.InvoiceDate,
			PDFHash:           req.PDFHash,
		}, []rules.Candidate{{
			InvoiceID:         top.invoiceID,
			InvoiceNumberNorm: top.invoiceNumberNorm,
			PONumber:          top.poNumber,
			Total:             top.total,
			InvoiceDate:       top.invoiceDate,
			PDFHash:           top.pdfHash,
			ShingleJaccard:    normalize.Jaccard(normalize.CharNGrams(norm.textBlob, 3), normalize.CharNGrams(top.textBlob, 3)),
		}}, rules.Params{SamePOTotalTolPct: poTotalTol, SamePOWindowDays: poWindowDays})
	}
	ruleResult = rules.ApplyBankChange(ruleResult, bankChange)

	p := decisionengine.Fuse(decisionengine.Inputs{
		DupProb:     dupProb,
		AnomProb:    anomProb,
		TextDupProb: textDupProb,
		BankChange:  bankChange,
	})
	riskScore := decisionengine.RiskScore(p)

	label, err := o.decisions.Decide(ctx, req.TenantID, req.VendorID, riskScore, ruleResult.Forced)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	if dqFail && label == models.DecisionPass {
		label = models.DecisionReview
	}

	reasonCodes := mergeReasonCodes(ruleResult.ReasonCodes, anomReasons)
	if dqFail {
		reasonCodes = appendUnique(reasonCodes, "DATA_QUALITY_CHECK_FAIL")
	}

	topMatches := make([]TopMatch, 0, len(matches))
	for _, m := range matches {
		topMatches = append(topMatches, TopMatch{InvoiceID: m.invoiceID, Similarity: m.similarity, Features: m.vector})
	}
	explanations := buildExplanations(matches)

	decisionID := idgen.NewDecisionID()
	topMatchesBlob, err := models.NewJSONBlob(topMatches)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrSchema, err)
	}
	explanationBlob, err := models.NewJSONBlob(explanations)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrSchema, err)
	}

	decision := &models.Decision{
		TenantID:       req.TenantID,
		DecisionID:     decisionID,
		InvoiceID:      req.InvoiceID,
		RiskScore:      riskScore,
		Label:          label,
		DupProb:        dupProb,
		AnomProb:       anomProb,
		TextProb:       textDupProb,
		ReasonCodes:    models.StringSlice(reasonCodes),
		TopMatches:     topMatchesBlob,
		Explanation:    explanationBlob,
		RuleOverride:   ruleResult.Forced != models.DecisionPass,
		ModelID:        o.predictor.ModelID(),
		ModelVersion:   o.predictor.ModelVersion(),
		RulesetVersion: o.rulesetVersion,
	}
	if err := store.PersistDecision(ctx, tx, decision); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}

	if _, err := o.cases.OnDecision(ctx, tx, req.TenantID, req.InvoiceID, decisionID, label); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}

	auditPayload, err := models.NewJSONBlob(map[string]interface{}{
		"risk_score":   riskScore,
		"decision":     label,
		"reason_codes": reasonCodes,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrSchema, err)
	}
	if err := audit.Record(ctx, tx, req.TenantID, req.Actor, audit.ActionScored, audit.EntityDecision, decisionID, auditPayload); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}

	return &Result{
		RiskScore:    riskScore,
		Decision:     label,
		ReasonCodes:  reasonCodes,
		TopMatches:   topMatches,
		Explanations: explanations,
		DecisionID:   decisionID,
	}, nil
}

// scoredCandidate is one retrieved invoice with its computed feature
// vector and duplicate-probability score.
type scoredCandidate struct {
	invoiceID         string
	invoiceNumberNorm string
	poNumber          *string
	total             float64
	invoiceDate       time.Time
	pdfHash           *string
	textBlob          string
	similarity        float64
	vector            map[string]float64
}

// scoreCandidates computes the feature vector and duplicate
// probability for every retrieved candidate. The candidates'
// lines/text are batch-loaded up front; the CPU-bound feature and
// model-inference work per candidate then runs concurrently via
// errgroup, writing into a pre-sized slice by index so the result
// ordering never depends on goroutine scheduling.
func (o *Orchestrator) scoreCandidates(ctx context.Context, tx *gorm.DB, req Request, norm normalized, candidates []retrieval.Candidate) ([]scoredCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	ctx, span := tracer.Start(ctx, "orchestrator.scoreCandidates")
	defer span.End()

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.InvoiceID
	}
	linesByID, err := store.LoadLinesForInvoices(ctx, tx, req.TenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	textByID, err := store.LoadTextBlobs(ctx, tx, req.TenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}

	queryLines := make([]features.Line, len(req.LineItems))
	for i, li := range req.LineItems {
		queryLines[i] = features.Line{
			DescNorm:  normalize.DescNorm(li.Desc),
			UnitPrice: li.UnitPrice,
			Qty:       li.Qty,
			Amount:    lineAmount(li),
		}
	}
	queryHeader := features.Header{
		Total:             req.Total,
		InvoiceDate:       req.InvoiceDate,
		PONumber:          req.PONumber,
		Currency:          req.Currency,
		TaxTotal:          req.TaxTotal,
		RemitAccountHash:  norm.remitAccountHash,
		RemitName:         req.RemitName,
		InvoiceNumberNorm: norm.invoiceNumberNorm,
	}
	queryPair := features.Pair{Header: queryHeader, Lines: queryLines, Text: norm.textBlob}

	alpha, err := o.configs.GetFloat(ctx, req.TenantID, req.VendorID, "alpha", configstore.DefaultAlpha)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	beta, err := o.configs.GetFloat(ctx, req.TenantID, req.VendorID, "beta", configstore.DefaultBeta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	gamma, err := o.configs.GetFloat(ctx, req.TenantID, req.VendorID, "gamma", configstore.DefaultGamma)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	weights := features.Weights{Alpha: alpha, Beta: beta, Gamma: gamma}

	results := make([]scoredCandidate, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rows := linesByID[c.InvoiceID]
			candLines := make([]features.Line, 0, len(rows))
			for _, l := range rows {
				candLines = append(candLines, features.Line{
					DescNorm:  l.DescriptionNorm,
					UnitPrice: decimalFloat(l.UnitPrice),
					Qty:       decimalFloat(l.Quantity),
					Amount:    decimalFloat(l.Amount),
				})
			}
			candHeader := features.Header{
				Total:             c.Total,
				InvoiceDate:       c.InvoiceDate,
				PONumber:          c.PONumber,
				Currency:          c.Currency,
				TaxTotal:          c.TaxTotal,
				RemitAccountHash:  c.RemitAccountHash,
				RemitName:         c.RemitName,
				InvoiceNumberNorm: c.InvoiceNumberNorm,
			}
			textBlob := textByID[c.InvoiceID]
			candPair := features.Pair{Header: candHeader, Lines: candLines, Text: textBlob}

			vector := features.Compute(queryPair, candPair, weights)
			dupProb, _, _ := dupscore.Predict(o.predictor, vector)

			results[i] = scoredCandidate{
				invoiceID:         c.InvoiceID,
				invoiceNumberNorm: c.InvoiceNumberNorm,
				poNumber:          c.PONumber,
				total:             c.Total,
				invoiceDate:       c.InvoiceDate,
				pdfHash:           c.PDFHash,
				textBlob:          textBlob,
				similarity:        dupProb,
				vector:            vector,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	return results, nil
}

func buildExplanations(matches []scoredCandidate) []Explanation {
	if len(matches) == 0 {
		return nil
	}
	top := matches[0]
	explanations := make([]Explanation, 0, len(features.Order))
	for _, name := range features.Order {
		explanations = append(explanations, Explanation{Feature: name, Value: top.vector[name]})
	}
	return explanations
}

func containsReason(reasons []string, target string) bool {
	for _, r := range reasons {
		if r == target {
			return true
		}
	}
	return false
}

func appendUnique(list []string, item string) []string {
	if containsReason(list, item) {
		return list
	}
	return append(list, item)
}

// mergeReasonCodes combines the rule engine's (already deduplicated)
// reason codes with the anomaly scorer's, appending only those not
// already present, in that order.
func mergeReasonCodes(ruleCodes, anomReasons []string) []string {
	out := append([]string{}, ruleCodes...)
	for _, r := range anomReasons {
		out = appendUnique(out, r)
	}
	return out
}

// loadPersistedResult returns the prior decision an idempotency key
// already resolved to, used by Score's replay path.
func (o *Orchestrator) loadPersistedResult(ctx context.Context, tx *gorm.DB, tenantID, decisionID string) (*Result, error) {
	if decisionID == "" {
		return nil, apperr.ErrNotFound
	}
	d, err := store.LoadDecision(ctx, tx, tenantID, decisionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	return decisionToResult(d), nil
}

// GetLatestDecision returns the most recently scored decision for an
// invoice, for the read-only GET /invoice/:id/decision endpoint.
func (o *Orchestrator) GetLatestDecision(ctx context.Context, tenantID, invoiceID string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.GetLatestDecision")
	defer span.End()

	d, err := store.LoadLatestDecision(ctx, o.db, tenantID, invoiceID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	return decisionToResult(d), nil
}

func decisionToResult(d *models.Decision) *Result {
	var topMatches []TopMatch
	_ = json.Unmarshal(d.TopMatches, &topMatches)
	var explanations []Explanation
	_ = json.Unmarshal(d.Explanation, &explanations)
	return &Result{
		RiskScore:    d.RiskScore,
		Decision:     d.Label,
		ReasonCodes:  []string(d.ReasonCodes),
		TopMatches:   topMatches,
		Explanations: explanations,
		DecisionID:   d.DecisionID,
	}
}
