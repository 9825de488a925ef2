package service

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

type sealedApproval struct {
	EvaluatorID string `json:"evaluator_id"`
	Role        string `json:"role"`
	ApprovedAt  string `json:"approved_at"`
}

type sealedVerdict struct {
	ID            string           `json:"id"`
	SittingID     string           `json:"sitting_id"`
	CandidateIDs  []string         `json:"candidate_ids"`
	FinalScore    float64          `json:"final_score"`
	Mention       string           `json:"mention"`
	Observations  string           `json:"observations"`
	Appreciations string           `json:"appreciations"`
	RevisionText  string           `json:"revision_request_text"`
	Approvals     []sealedApproval `json:"approvals"`
	FinalizedAt   string           `json:"finalized_at"`
}

// ComputeVerdictSeal returns the hex BLAKE2b-256 digest of the verdict content, its
// approvals and the sitting's candidates. Any later edit changes the digest.
func ComputeVerdictSeal(verdict models.Verdict, candidateIDs []string) (string, error) {
	payload := sealedVerdict{
		ID:            verdict.ID,
		SittingID:     verdict.SittingID,
		CandidateIDs:  append([]string(nil), candidateIDs...),
		FinalScore:    verdict.FinalScore,
		Mention:       verdict.Mention,
		Observations:  verdict.Observations,
		Appreciations: verdict.Appreciations,
	}
	if verdict.RevisionText != nil {
		payload.RevisionText = *verdict.RevisionText
	}
	if verdict.FinalizedAt != nil {
		payload.FinalizedAt = verdict.FinalizedAt.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano)
	}
	sort.Strings(payload.CandidateIDs)

	approvals := append([]models.VerdictApproval(nil), verdict.Approvals...)
	sort.SliceStable(approvals, func(i, j int) bool {
		if roleOrder(approvals[i].Role) != roleOrder(approvals[j].Role) {
			return roleOrder(approvals[i].Role) < roleOrder(approvals[j].Role)
		}
		return approvals[i].EvaluatorID < approvals[j].EvaluatorID
	})
	for _, a := range approvals {
		payload.Approvals = append(payload.Approvals, sealedApproval{
			EvaluatorID: a.EvaluatorID,
			Role:        string(a.Role),
			ApprovedAt:  a.ApprovedAt.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano),
		})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode verdict for seal: %w", err)
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyVerdictSeal reports whether the stored seal still matches the verdict.
func VerifyVerdictSeal(verdict models.Verdict, candidateIDs []string) bool {
	if verdict.Seal == nil {
		return false
	}
	seal, err := ComputeVerdictSeal(verdict, candidateIDs)
	return err == nil && seal == *verdict.Seal
}
