package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"sessionflow/internal/blob"
	"sessionflow/internal/core"
)

// Hand-written fixtures quote fields with a single quote.
const fixtureQuote = '\''

var labFixtures = map[string][]string{
	"lab/labs.csv": {
		"lab,lab_name,institution,address,time_zone,location,location_description",
		"LabA,The Example Lab,Example Uni,'221B Baker St,London NW1 6XE,UK',UTC+0,Example Building,'2nd floor lab dedicated to all fictional experiments.'",
		"LabB,The Other Lab,Other Uni,'Oxford OX1 2JD, United Kingdom',UTC+0,Other Building,'fictional campus dedicated to imaginary experiments.'",
	},
	"lab/projects.csv": {
		"project,project_description,repository_url,repository_name,codeurl",
		"ProjA,Example project to populate element-lab,https://github.com/datajoint/element-lab/,element-lab,https://github.com/datajoint/element-lab/tree/main/element_lab",
		"ProjB,Other example project to populate element-lab,https://github.com/datajoint/element-session/,element-session,https://github.com/datajoint/element-session/tree/main/element_session",
	},
	"lab/publications.csv": {
		"project,publication",
		"ProjA,arXiv:1807.11104",
		"ProjA,arXiv:1807.11104v1",
	},
	"lab/keywords.csv": {
		"project,keyword",
		"ProjA,Study",
		"ProjA,Example",
		"ProjB,Alternate",
	},
	"lab/protocols.csv": {
		"protocol,protocol_type,protocol_description",
		"ProtA,IRB expedited review,Protocol for managing data ingestion",
		"ProtB,Alternative Method,Limited protocol for piloting only",
	},
	"lab/users.csv": {
		"lab,user,user_role,user_email,user_cellphone",
		"LabA,Sherlock,PI,Sherlock@BakerSt.com,+44 20 7946 0344",
		"LabA,Watson,Dr,DrWatson@BakerSt.com,+44 73 8389 1763",
		"LabB,Dr. Candace Pert,PI,Pert@gmail.com,+44 74 4046 5899",
		"LabA,User1,Lab Tech,fake@email.com,+44 1632 960103",
		"LabB,User2,Lab Tech,fake2@email.com,+44 1632 960102",
	},
	"lab/project_users.csv": {
		"user,project",
		"Sherlock,ProjA",
		"Sherlock,ProjB",
		"Watson,ProjB",
		"Dr. Candace Pert,ProjA",
		"User1,ProjA",
	},
	"lab/sources.csv": {
		"source,source_name,contact_details,source_description",
		"Provider1,Example Provider,+44 1632 960663 / Example@Provider.com,UK-based supplier of lab subjects mus musculus",
	},
}

var subjectFixtures = map[string][]string{
	"subject/subjects.csv": {
		"subject,sex,subject_birth_date,subject_description,death_date,cull_method",
		"subject5,F,2020-01-01 00:00:01,rich,2020-10-02 00:00:01,natural causes",
		"subject6,M,2020-01-01 00:00:01,manuel,2020-10-03 00:00:01,natural causes",
		"subjectX,F,2020-01-01 00:00:01,ally,2020-10-04 00:00:01,natural causes",
		"subjectY,M,2020-01-01 00:00:01,thom,2020-10-05 00:00:01,natural causes",
		"subjectZ,M,2020-01-01 00:00:01,winston,2020-10-06 00:00:01,natural causes",
	},
	"subject/subjects_part.csv": {
		"subject,protocol,user,line,strain,source,lab",
		"subject6,ProtA,User1,Black 6,B6,Provider1,LabA",
		"subject5,ProtA,User1,Brown 6,GP5.5,Provider1,LabA",
	},
	"subject/allele.csv": {
		"allele,allele_standard_name,sequence,source,source_identifier,source_url",
		"Cdh23ahl,cadherin 23 (otocadherin); age related hearing loss 1,G-GT,Provider1,MGI:3028349,jax.org/strain/000664",
		"Apobec3Rfv3-r,apolipoprotein B mRNA editing enzyme - catalytic polypeptide 3; recovery from Friend virus 3,A-GT,Provider1,MGI:3028349,jax.org/strain/000665",
	},
	"subject/cage.csv": {
		"cage,subject,caging_datetime,user",
		"1,subject5,2020-01-02,User1",
		"2,subject6,2020-01-02,User2",
	},
	"subject/breedingpair.csv": {
		"subject,line,breeding_pair,bp_start_date,bp_end_date,father,mother,litter_birth_date,num_of_pups,weaning_date,num_of_male,num_of_female",
		"subject5,Black 6,1/2,2019-10-15,2020-10-30,subject1,subject2,2020-10-20,2,2020-10-30,1,1",
		"subject6,Black 6,1/2,2019-10-15,2020-10-30,subject1,subject2,2020-10-20,2,2020-10-30,1,1",
		"subjectX,Brown 6,5/6,2019-12-31,2020-01-02,subject5,subject6,2020-01-01,3,2020-01-02,2,1",
		"subjectY,Brown 6,5/6,2019-12-31,2020-01-02,subject5,subject6,2020-01-01,3,2020-01-02,2,1",
		"subjectZ,Brown 6,5/6,2019-12-31,2020-01-02,subject5,subject6,2020-01-01,3,2020-01-02,2,1",
	},
	"subject/genotype_test.csv": {
		"subject,sequence,genotype_test_id,test_result",
		"subject5,G-GT,TestA,Present",
		"subject6,G-GT,TestA,Absent",
		"subject5,A-GT,TestA,Absent",
		"subject6,A-GT,TestA,Present",
	},
	"subject/line.csv": {
		"line,species,is_active,allele",
		"Black 6,mus musculus,1,Cdh23ahl",
		"Black 6,mus musculus,1,Apobec3Rfv3-r",
		"Brown 6,mus musculus,1,Cdh23ahl",
	},
	"subject/strain.csv": {
		"strain,strain_standard_name,strain_desc",
		"B6,C57BL/6J,First to have its genome sequenced",
		"GP5.5,Gcamp6-Thy,Expresses green fluorescent calcium indicator: GCaMP6f",
	},
	"subject/zygosity.csv": {
		"subject,allele,zygosity",
		"subject5,Cdh23ahl,Present",
		"subject5,Apobec3Rfv3-r,Heterozygous",
		"subject6,Cdh23ahl,Homozygous",
		"subjectX,Cdh23ahl,Present",
		"subjectY,Apobec3Rfv3-r,Present",
		"subjectZ,Apobec3Rfv3-r,Absent",
	},
}

var sessionFixtures = map[string][]string{
	"session/sessions.csv": {
		"subject,project,session_datetime,session_dir,session_note,user",
		`subject5,ProjA,2018-07-03 20:32:28,/subject5\session1,Successful data collection - no notes,User1`,
		"subject6,ProjA,2021-06-02 14:04:22,/subject6/session1,Ambient temp abnormally low,User2",
	},
}

func putFixtures(t *testing.T, store blob.Store, sets ...map[string][]string) {
	t.Helper()
	for _, set := range sets {
		for key, lines := range set {
			putText(t, store, key, strings.Join(lines, "\n")+"\n")
		}
	}
}

func putText(t *testing.T, store blob.Store, key, content string) {
	t.Helper()
	_, err := store.Put(context.Background(), key, strings.NewReader(content), blob.PutOptions{ContentType: "text/csv"})
	require.NoError(t, err, key)
}

func newTarget(t *testing.T, opts ...core.Option) *core.Pipeline {
	t.Helper()
	ctx := context.Background()
	p, err := core.OpenPipeline(ctx, core.StorageConfig{Driver: core.StorageMemory}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	require.NoError(t, p.Activate(ctx))
	return p
}

func fixtureStore(t *testing.T) blob.Store {
	t.Helper()
	store := blob.NewMemory()
	putFixtures(t, store, labFixtures, subjectFixtures, sessionFixtures)
	return store
}

func count(t *testing.T, p *core.Pipeline, table string) int {
	t.Helper()
	n, err := p.Count(context.Background(), p.Catalog().MustTable(table), nil)
	require.NoError(t, err, table)
	return n
}
