package schema

import "sessionflow/pkg/domain"

// Schema names.
const (
	SchemaLab        = "lab"
	SchemaSubject    = "subject"
	SchemaGenotyping = "genotyping"
	SchemaSession    = "session"
)

var defaultCatalog = buildDefault()

// Default returns the workflow catalog. The returned tables are shared and
// must not be modified.
func Default() *Catalog { return defaultCatalog }

func buildDefault() *Catalog {
	c := NewCatalog()
	lab := declareLab(c)
	subj := declareSubject(c, lab)
	declareGenotyping(c, lab, subj)
	declareSession(c, lab, subj)
	return c
}

type labTables struct {
	lab, user, protocol, project, source *Table
}

type subjectTables struct {
	subject, allele, line *Table
}

func declareLab(c *Catalog) labTables {
	lab := c.Lookup(SchemaLab, "Lab", "research lab").
		Key(Varchar("lab", 24).Doc("abbreviated lab name")).
		Attr(Varchar("lab_name", 255).Doc("full lab name")).
		Attr(Varchar("institution", 255)).
		Attr(Varchar("address", 255)).
		Attr(Varchar("time_zone", 64).Doc("'UTC+X' format")).
		Table()
	c.Manual(SchemaLab, "Location", "location of research, such as animal housing or experimental rigs").
		Ref(lab).
		Key(Varchar("location", 32)).
		Attr(Varchar("location_description", 255).WithDefault("")).
		Table()
	role := c.Lookup(SchemaLab, "UserRole", "").
		Key(Varchar("user_role", 16)).
		Table()
	user := c.Lookup(SchemaLab, "User", "").
		Key(Varchar("user", 32).Doc("username, short identifier")).
		Attr(Varchar("user_email", 128).WithDefault("")).
		Attr(Varchar("user_cellphone", 32).WithDefault("")).
		Attr(Varchar("user_fullname", 64).WithDefault("").Doc("full name used to uniquely identify an individual")).
		Table()
	c.Lookup(SchemaLab, "LabMembership", "").
		Ref(lab).
		Ref(user).
		NullableRef(role).
		Table()
	protocolType := c.Lookup(SchemaLab, "ProtocolType", "").
		Key(Varchar("protocol_type", 32)).
		Table()
	protocol := c.Lookup(SchemaLab, "Protocol", "protocol approved by some institutions like IACUC, IRB").
		Key(Varchar("protocol", 16)).
		AttrRef(protocolType).
		Attr(Varchar("protocol_description", 255).WithDefault("")).
		Table()
	project := c.Lookup(SchemaLab, "Project", "").
		Key(Varchar("project", 32)).
		Attr(Varchar("project_description", 1024).WithDefault("")).
		Attr(Varchar("project_title", 1024).WithDefault("").Doc("full title for the project")).
		Attr(Date("project_start_date").Null().Doc("date the project started")).
		Attr(Date("project_end_date").Null().Doc("date the project ended")).
		Table()
	c.Manual(SchemaLab, "ProjectKeywords", "project keyword").
		Ref(project).
		Key(Varchar("keyword", 32).Doc("descriptive keyword for the project")).
		Table()
	c.Manual(SchemaLab, "ProjectPublication", "project's resulting publications").
		Ref(project).
		Key(Varchar("publication", 256).Doc("publication name, DOI or arXiv reference")).
		Table()
	c.Manual(SchemaLab, "ProjectSourceCode", "URL to source code for replication").
		Ref(project).
		Key(Varchar("repository_url", 256).Doc("URL to code for replication")).
		Attr(Varchar("repository_name", 32).WithDefault("").Doc("name of the repository")).
		Table()
	c.Manual(SchemaLab, "ProjectUser", "a list of users participating in a project").
		Ref(project).
		Ref(user).
		Table()
	source := c.Lookup(SchemaLab, "Source", "source or supplier of animals").
		Key(Varchar("source", 32).Doc("abbreviated source name")).
		Attr(Varchar("source_name", 255)).
		Attr(Varchar("contact_details", 255).WithDefault("")).
		Attr(Varchar("source_description", 255).WithDefault("")).
		Table()
	return labTables{lab: lab, user: user, protocol: protocol, project: project, source: source}
}

func declareSubject(c *Catalog, lt labTables) subjectTables {
	subject := c.Manual(SchemaSubject, "Subject", "animal subject").
		Key(Varchar("subject", 8)).
		Attr(Varchar("subject_nickname", 64).WithDefault("")).
		Attr(Enum("sex", domain.SexValues()...)).
		Attr(Date("subject_birth_date")).
		Attr(Varchar("subject_description", 1024).WithDefault("")).
		Table()
	strain := c.Lookup(SchemaSubject, "Strain", "").
		Key(Varchar("strain", 32).Doc("abbreviated strain name")).
		Attr(Varchar("strain_standard_name", 32).Doc("formal name of a strain")).
		Attr(Varchar("strain_desc", 255).WithDefault("").Doc("description of this strain")).
		Table()
	allele := c.Lookup(SchemaSubject, "Allele", "").
		Key(Varchar("allele", 32).Doc("abbreviated allele name")).
		Attr(Varchar("allele_standard_name", 255).WithDefault("").Doc("standard name of an allele")).
		Table()
	c.Part(allele, "Source", "").
		Ref(lt.source).
		Attr(Varchar("source_identifier", 255).WithDefault("").Doc("id inside the line provider")).
		Attr(Varchar("source_url", 255).WithDefault("").Doc("link to the line information")).
		Attr(Varchar("expression_data_url", 255).WithDefault("").Doc("link to the gene expression data")).
		Table()
	line := c.Lookup(SchemaSubject, "Line", "").
		Key(Varchar("line", 32).Doc("abbreviated name for the line")).
		Attr(Varchar("species", 64).WithDefault("").Doc("latin name preferred for NWB export")).
		Attr(Varchar("line_description", 2000).WithDefault("")).
		Attr(Varchar("target_phenotype", 255).WithDefault("")).
		Attr(Bool("is_active").Doc("whether the line is in active breeding")).
		Table()
	c.Part(line, "Allele", "").
		Ref(allele).
		Table()

	c.Part(subject, "Protocol", "").
		Ref(lt.protocol).
		Table()
	c.Part(subject, "User", "").
		Ref(lt.user).
		Table()
	c.Part(subject, "Line", "").
		AttrRef(line).
		Table()
	c.Part(subject, "Strain", "").
		AttrRef(strain).
		Table()
	c.Part(subject, "Source", "").
		AttrRef(lt.source).
		Table()
	c.Part(subject, "Lab", "").
		Ref(lt.lab).
		Attr(Varchar("subject_alias", 32).WithDefault("").Doc("alias of the subject in this lab, if different from the id")).
		Table()
	c.Manual(SchemaSubject, "SubjectDeath", "").
		Ref(subject).
		Attr(Date("death_date").Doc("death date")).
		Table()
	c.Manual(SchemaSubject, "SubjectCullMethod", "").
		Ref(subject).
		Attr(Varchar("cull_method", 255)).
		Table()
	c.Manual(SchemaSubject, "Zygosity", "").
		Ref(subject).
		Ref(allele).
		Attr(Enum("zygosity", domain.ZygosityValues()...)).
		Table()
	return subjectTables{subject: subject, allele: allele, line: line}
}

func declareGenotyping(c *Catalog, lt labTables, st subjectTables) {
	sequence := c.Lookup(SchemaGenotyping, "Sequence", "").
		Key(Varchar("sequence", 32).Doc("abbreviated sequence name")).
		Attr(Varchar("base_pairs", 1024).WithDefault("").Doc("base pairs")).
		Attr(Varchar("sequence_desc", 1024).WithDefault("").Doc("description")).
		Table()
	c.Lookup(SchemaGenotyping, "AlleleSequence", "").
		Ref(st.allele).
		Ref(sequence).
		Table()
	pair := c.Manual(SchemaGenotyping, "BreedingPair", "").
		Ref(st.line).
		Key(Varchar("breeding_pair", 32).Doc("name of a breeding pair")).
		Attr(Date("bp_start_date").Null().Doc("start date")).
		Attr(Date("bp_end_date").Null().Doc("end date")).
		Attr(Varchar("bp_description", 2048).WithDefault("").Doc("description of the breeding pair")).
		Table()
	c.Part(pair, "Father", "").
		Ref(st.subject).
		Table()
	c.Part(pair, "Mother", "").
		Ref(st.subject).
		Table()
	litter := c.Manual(SchemaGenotyping, "Litter", "").
		Ref(pair).
		Key(Date("litter_birth_date")).
		Attr(Tinyint("num_of_pups")).
		Attr(Varchar("litter_notes", 255).WithDefault("").Doc("notes about the litter")).
		Table()
	c.Manual(SchemaGenotyping, "Weaning", "").
		Ref(litter).
		Attr(Date("weaning_date")).
		Attr(Tinyint("num_of_male")).
		Attr(Tinyint("num_of_female")).
		Attr(Varchar("weaning_notes", 255).WithDefault("")).
		Table()
	c.Manual(SchemaGenotyping, "SubjectLitter", "").
		Ref(st.subject).
		AttrRef(litter).
		Table()
	cage := c.Lookup(SchemaGenotyping, "Cage", "").
		Key(Varchar("cage", 32).Doc("cage id")).
		Attr(Varchar("cage_purpose", 128).WithDefault("").Doc("cage purpose")).
		Table()
	c.Manual(SchemaGenotyping, "SubjectCaging", "record of animal caging").
		Ref(st.subject).
		Key(Datetime("caging_datetime").Doc("date of cage entry")).
		AttrRef(cage).
		AttrRef(lt.user).
		Table()
	c.Manual(SchemaGenotyping, "GenotypeTest", "").
		Ref(st.subject).
		Ref(sequence).
		Key(Varchar("genotype_test_id", 32).Doc("identifier of a genotype test")).
		Attr(Enum("test_result", domain.TestResultValues()...)).
		Table()
}

func declareSession(c *Catalog, lt labTables, st subjectTables) {
	session := c.Manual(SchemaSession, "Session", "").
		Ref(st.subject).
		Key(Datetime("session_datetime")).
		Table()
	c.Manual(SchemaSession, "SessionDirectory", "").
		Ref(session).
		Attr(Varchar("session_dir", 256).Doc("path to the data directory for a session")).
		Table()
	c.Manual(SchemaSession, "SessionExperimenter", "").
		Ref(session).
		Ref(lt.user).
		Table()
	c.Manual(SchemaSession, "SessionNote", "").
		Ref(session).
		Attr(Varchar("session_note", 1024)).
		Table()
	c.Manual(SchemaSession, "ProjectSession", "").
		Ref(lt.project).
		Ref(session).
		Table()
}
