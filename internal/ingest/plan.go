package ingest

// Step feeds one table from one source.
type Step struct {
	// Source names an entry of Plan.Sources.
	Source string
	// Table is resolved against the catalog.
	Table string
	// Rename maps table attributes to differently named source columns.
	Rename map[string]string
	// Require lists source columns that must be non-blank for a record to
	// feed this step.
	Require []string
	// Known maps a table attribute to the table whose key it must name.
	// Records naming an absent entry are filtered with a warning instead of
	// failing the step on a foreign key.
	Known map[string]string
}

func (s Step) column(attr string) string {
	if src, ok := s.Rename[attr]; ok {
		return src
	}
	return attr
}

// Plan is an ordered list of steps over named sources. Steps must be
// ordered parents first.
type Plan struct {
	Name    string
	Sources map[string]string // source name -> blob key
	Steps   []Step
}

// Source names shared by the plans and their files.
const (
	SourceLabs         = "labs"
	SourceProjects     = "projects"
	SourcePublications = "publications"
	SourceKeywords     = "keywords"
	SourceProtocols    = "protocols"
	SourceUsers        = "users"
	SourceProjectUsers = "project_users"
	SourceSources      = "sources"

	SourceSubjects     = "subjects"
	SourceSubjectParts = "subjects_part"
	SourceAllele       = "allele"
	SourceCage         = "cage"
	SourceBreedingPair = "breedingpair"
	SourceGenotypeTest = "genotype_test"
	SourceLine         = "line"
	SourceStrain       = "strain"
	SourceZygosity     = "zygosity"

	SourceSessions = "sessions"
)

// LabFiles locates the lab sources.
type LabFiles struct {
	Labs         string
	Projects     string
	Publications string
	Keywords     string
	Protocols    string
	Users        string
	ProjectUsers string
	Sources      string
}

// DefaultLabFiles returns the conventional keys under lab/.
func DefaultLabFiles() LabFiles {
	return LabFiles{
		Labs:         "lab/labs.csv",
		Projects:     "lab/projects.csv",
		Publications: "lab/publications.csv",
		Keywords:     "lab/keywords.csv",
		Protocols:    "lab/protocols.csv",
		Users:        "lab/users.csv",
		ProjectUsers: "lab/project_users.csv",
		Sources:      "lab/sources.csv",
	}
}

// Plan returns the lab ingestion plan.
func (f LabFiles) Plan() Plan {
	return Plan{
		Name: "lab",
		Sources: map[string]string{
			SourceLabs:         f.Labs,
			SourceProjects:     f.Projects,
			SourcePublications: f.Publications,
			SourceKeywords:     f.Keywords,
			SourceProtocols:    f.Protocols,
			SourceUsers:        f.Users,
			SourceProjectUsers: f.ProjectUsers,
			SourceSources:      f.Sources,
		},
		Steps: []Step{
			{Source: SourceLabs, Table: "lab.Lab"},
			{Source: SourceLabs, Table: "lab.Location", Require: []string{"location"}},
			{Source: SourceProjects, Table: "lab.Project"},
			{Source: SourceProjects, Table: "lab.ProjectSourceCode", Require: []string{"repository_url"}},
			{Source: SourcePublications, Table: "lab.ProjectPublication"},
			{Source: SourceKeywords, Table: "lab.ProjectKeywords"},
			{Source: SourceProtocols, Table: "lab.ProtocolType"},
			{Source: SourceProtocols, Table: "lab.Protocol"},
			{Source: SourceUsers, Table: "lab.UserRole", Require: []string{"user_role"}},
			{Source: SourceUsers, Table: "lab.User"},
			{Source: SourceUsers, Table: "lab.LabMembership"},
			{Source: SourceProjectUsers, Table: "lab.ProjectUser"},
			{Source: SourceSources, Table: "lab.Source"},
		},
	}
}

// SubjectFiles locates the subject and genotyping sources.
type SubjectFiles struct {
	Subjects     string
	SubjectParts string
	Allele       string
	Cage         string
	BreedingPair string
	GenotypeTest string
	Line         string
	Strain       string
	Zygosity     string
}

// DefaultSubjectFiles returns the conventional keys under subject/.
func DefaultSubjectFiles() SubjectFiles {
	return SubjectFiles{
		Subjects:     "subject/subjects.csv",
		SubjectParts: "subject/subjects_part.csv",
		Allele:       "subject/allele.csv",
		Cage:         "subject/cage.csv",
		BreedingPair: "subject/breedingpair.csv",
		GenotypeTest: "subject/genotype_test.csv",
		Line:         "subject/line.csv",
		Strain:       "subject/strain.csv",
		Zygosity:     "subject/zygosity.csv",
	}
}

// Plan returns the subject ingestion plan.
func (f SubjectFiles) Plan() Plan {
	return Plan{
		Name: "subjects",
		Sources: map[string]string{
			SourceSubjects:     f.Subjects,
			SourceSubjectParts: f.SubjectParts,
			SourceAllele:       f.Allele,
			SourceCage:         f.Cage,
			SourceBreedingPair: f.BreedingPair,
			SourceGenotypeTest: f.GenotypeTest,
			SourceLine:         f.Line,
			SourceStrain:       f.Strain,
			SourceZygosity:     f.Zygosity,
		},
		Steps: []Step{
			{Source: SourceSubjects, Table: "subject.Subject"},
			{Source: SourceSubjects, Table: "subject.SubjectDeath", Require: []string{"death_date"}},
			{Source: SourceSubjects, Table: "subject.SubjectCullMethod", Require: []string{"cull_method"}},
			{Source: SourceSubjectParts, Table: "subject.Subject.Protocol", Require: []string{"protocol"}},
			{Source: SourceSubjectParts, Table: "subject.Subject.User", Require: []string{"user"}},
			{Source: SourceSubjectParts, Table: "subject.Subject.Lab", Require: []string{"lab"}},
			{Source: SourceStrain, Table: "subject.Strain"},
			{Source: SourceAllele, Table: "subject.Allele"},
			{Source: SourceAllele, Table: "subject.Allele.Source", Require: []string{"source"}},
			{Source: SourceAllele, Table: "genotyping.Sequence", Require: []string{"sequence"}},
			{Source: SourceAllele, Table: "genotyping.AlleleSequence", Require: []string{"sequence"}},
			{Source: SourceLine, Table: "subject.Line"},
			{Source: SourceLine, Table: "subject.Line.Allele", Require: []string{"allele"}},
			{Source: SourceSubjectParts, Table: "subject.Subject.Line", Require: []string{"line"}},
			{Source: SourceSubjectParts, Table: "subject.Subject.Strain", Require: []string{"strain"}},
			{Source: SourceSubjectParts, Table: "subject.Subject.Source", Require: []string{"source"}},
			{Source: SourceZygosity, Table: "subject.Zygosity"},
			{Source: SourceBreedingPair, Table: "genotyping.BreedingPair"},
			{Source: SourceBreedingPair, Table: "genotyping.BreedingPair.Father",
				Rename: map[string]string{"subject": "father"}, Require: []string{"father"},
				Known: map[string]string{"subject": "subject.Subject"}},
			{Source: SourceBreedingPair, Table: "genotyping.BreedingPair.Mother",
				Rename: map[string]string{"subject": "mother"}, Require: []string{"mother"},
				Known: map[string]string{"subject": "subject.Subject"}},
			{Source: SourceBreedingPair, Table: "genotyping.Litter", Require: []string{"litter_birth_date"}},
			{Source: SourceBreedingPair, Table: "genotyping.Weaning", Require: []string{"litter_birth_date", "weaning_date"}},
			{Source: SourceBreedingPair, Table: "genotyping.SubjectLitter", Require: []string{"subject", "litter_birth_date"}},
			{Source: SourceCage, Table: "genotyping.Cage"},
			{Source: SourceCage, Table: "genotyping.SubjectCaging", Require: []string{"subject", "caging_datetime"}},
			{Source: SourceGenotypeTest, Table: "genotyping.GenotypeTest"},
		},
	}
}

// SessionFiles locates the session sources.
type SessionFiles struct {
	Sessions string
}

// DefaultSessionFiles returns the conventional key under session/.
func DefaultSessionFiles() SessionFiles {
	return SessionFiles{Sessions: "session/sessions.csv"}
}

// Plan returns the session ingestion plan.
func (f SessionFiles) Plan() Plan {
	return Plan{
		Name:    "sessions",
		Sources: map[string]string{SourceSessions: f.Sessions},
		Steps: []Step{
			{Source: SourceSessions, Table: "session.Session"},
			{Source: SourceSessions, Table: "session.SessionDirectory", Require: []string{"session_dir"}},
			{Source: SourceSessions, Table: "session.SessionNote", Require: []string{"session_note"}},
			{Source: SourceSessions, Table: "session.SessionExperimenter", Require: []string{"user"}},
			{Source: SourceSessions, Table: "session.ProjectSession", Require: []string{"project"}},
		},
	}
}
