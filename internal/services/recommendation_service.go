package services

import (
	"context"
	"sort"
	"strings"

	"github.com/jitenkr2030/tutorapp-backend/internal/models"
)

type TutorMatcher interface {
	ListAll(ctx context.Context) ([]models.TutorProfile, error)
}

type RecommendationService struct {
	tutorRepo TutorMatcher
}

func NewRecommendationService(tutorRepo TutorMatcher) *RecommendationService {
	return &RecommendationService{tutorRepo: tutorRepo}
}

func (s *RecommendationService) GetRecommendedTutors(
	ctx context.Context,
	studentProfile *models.StudentProfile,
	limit int,
) ([]models.TutorWithScore, error) {
	tutors, err := s.tutorRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	recommended := make([]models.TutorWithScore, 0, len(tutors))
	for _, tutor := range tutors {
		recommended = append(recommended, models.TutorWithScore{
			TutorProfile: tutor,
			MatchScore:   calculateMatchScore(studentProfile, &tutor),
		})
	}

	sort.SliceStable(recommended, func(i, j int) bool {
		if recommended[i].MatchScore == recommended[j].MatchScore {
			return floatValue(recommended[i].Rating) > floatValue(recommended[j].Rating)
		}
		return recommended[i].MatchScore > recommended[j].MatchScore
	})

	if limit > 0 && len(recommended) > limit {
		recommended = recommended[:limit]
	}

	return recommended, nil
}

func calculateMatchScore(studentProfile *models.StudentProfile, tutor *models.TutorProfile) int {
	score := 0
	wantedSubjects := subjectAliases(studentProfile)
	tutorSubjects := normalizeValues(tutor.Subjects)

	for _, aliases := range wantedSubjects {
		for _, alias := range aliases {
			if _, ok := tutorSubjects[alias]; ok {
				score += 40
				break
			}
		}
	}

	if floatValue(tutor.Rating) > 4.0 {
		score += 20
	}
	if intValue(tutor.ExperienceYears) > 3 {
		score += 15
	}
	if boolValue(tutor.IsVerified) {
		score += 10
	}
	if budget := floatValue(studentBudget(studentProfile)); budget > 0 && floatValue(tutor.HourlyRate) <= budget {
		score += 15
	}

	return score
}

// subjectAliases widens a requested subject to the labels tutors commonly use.
func subjectAliases(studentProfile *models.StudentProfile) map[string][]string {
	subjects := sliceValue(nil)
	if studentProfile != nil {
		subjects = sliceValue(studentProfile.Subjects)
	}

	mapped := make(map[string][]string, len(subjects))
	for _, subject := range subjects {
		switch normalize(subject) {
		case "math", "maths", "mathematics":
			mapped["math"] = []string{"math", "maths", "mathematics", "algebra", "calculus", "geometry"}
		case "science":
			mapped["science"] = []string{"science", "physics", "chemistry", "biology"}
		case "english", "writing":
			mapped["english"] = []string{"english", "writing", "literature", "grammar"}
		case "programming", "coding", "computer_science":
			mapped["programming"] = []string{"programming", "coding", "computer_science"}
		default:
			if key := normalize(subject); key != "" {
				mapped[key] = []string{key}
			}
		}
	}

	return mapped
}

func normalizeValues(values *[]string) map[string]struct{} {
	normalized := make(map[string]struct{})
	for _, value := range sliceValue(values) {
		if key := normalize(value); key != "" {
			normalized[key] = struct{}{}
		}
	}
	return normalized
}

func normalize(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	value = strings.ReplaceAll(value, " ", "_")
	value = strings.ReplaceAll(value, "-", "_")
	return value
}

func sliceValue(values *[]string) []string {
	if values == nil {
		return nil
	}
	return *values
}

func floatValue(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}

func boolValue(value *bool) bool {
	if value == nil {
		return false
	}
	return *value
}

func intValue(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}

func studentBudget(studentProfile *models.StudentProfile) *float64 {
	if studentProfile == nil {
		return nil
	}
	return studentProfile.MaxHourlyRate
}
